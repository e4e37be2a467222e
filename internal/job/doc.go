// Package job holds the configuration model shared by the template and the
// branch children of a multibranch project, and the Kind capability that
// knows how to derive a child configuration from the template.
//
// A Config is plain data. It is persisted as YAML by the store and copied
// into every child during a synchronization pass. Everything a Kind needs
// to produce a child's configuration is passed explicitly: the template,
// the child being configured and the source binding built from its head.
package job
