/*
Package observability exposes the bot's activity as Prometheus metrics and
structured log lines.

# Key Concepts

  - Metrics: the collectors, registered on a caller-supplied registerer so tests
    can use a private registry.
  - Hooks: each component (session manager, lifecycle tracker, flow engine)
    accepts a hooks struct; Metrics builds one for each of them.
  - Compose: fans a single hook slot out to several observers, e.g. metrics and
    audit logging.
*/
package observability
