// Package infra contains technical adapters: the MQTT plan publisher, the
// metrics sinks, the xlsx workbook store, charts and Sentry. These packages
// depend only on the interfaces defined in the core packages.
package infra
