// Package config provides configuration management for multibranch.
//
// Configuration is loaded from a single directory containing config.yaml.
// The default directory is ~/.config/multibranch; commands accept
// --config-path to use another one. A missing config.yaml yields the
// defaults, which declare no projects.
//
// # Configuration Structure
//
//	stateDir: state                   # project store, relative to the config dir
//	logging:
//	  level: info                     # debug, info, warn, error
//	  format: text                    # text or json
//	reconciler:
//	  workers: 2
//	  maxRetries: 5
//	  initialBackoff: 1s
//	  maxBackoff: 5m
//	  reconcileTimeout: 5m
//	  debounceInterval: 500ms
//	  watchState: true                # watch templates and heads files
//	defaults:
//	  kind: freestyle
//	  syncInterval: 5m
//	  fetchTimeout: 30s
//	  retention:
//	    policy: immediate
//	projects:
//	  - name: webapp
//	    source:
//	      type: git                   # none, static, file or git
//	      url: https://example.com/webapp.git
//	    retention:
//	      policy: grace
//	      maxPasses: 3
//	      maxAge: 72h
//	  - name: docs
//	    kind: matrix
//	    suppressNewBranchBuilds: true
//	    source:
//	      type: file
//	      headsFile: heads/docs.yaml
//
// Unknown keys are rejected. Project names must be stable under the
// identifier codec, i.e. only use characters that are stored verbatim.
//
// # Usage
//
//	cfg, err := config.LoadConfig(config.GetDefaultConfigPathOrPanic())
//	if err != nil {
//		var ce config.ConfigurationError
//		if errors.As(err, &ce) {
//			fmt.Println(ce.DetailedError())
//		}
//		return err
//	}
//	for _, p := range cfg.Projects {
//		p = p.Effective(cfg.Defaults)
//		...
//	}
package config
