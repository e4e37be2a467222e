// Package dependency provides a small directed graph of multibranch projects
// and the children generated for them.
//
// Every child node depends on its project node. The graph is rebuilt for a
// project whenever a synchronization pass reports a topology change, so
// downstream consumers can ask which children a project currently owns
// without locking the project:
//
//	topology := dependency.NewTopology()
//	dispatcher.Subscribe(topology)
//	...
//	children := topology.Children("webapp")
//
// Graph itself is not safe for concurrent use; Topology is.
package dependency
