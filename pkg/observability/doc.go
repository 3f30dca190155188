/*
Package observability exposes the Prometheus collectors shared by holdfast components.

Collectors are package-level so every component can record without plumbing. They are
not registered automatically; call Register with the registry the host serves on /metrics.
*/
package observability
