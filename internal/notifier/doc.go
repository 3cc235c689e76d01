// Package notifier fans unit alerts out to every configured channel.
//
// # Dispatch
//
// Each notifier call runs in its own supervised goroutine with its own timeout,
// so a slow or broken channel never delays the others or the polling loop.
// Callers get control back as soon as every call has been launched.
//
// # Escalation
//
// When a channel fails to deliver an alert (or the start message), the failure
// itself is sent as an error alert to every channel, including the one that
// failed. Failures while delivering error alerts are only logged: escalation is
// exactly one level deep, so a broken channel cannot cause an alert storm.
//
// Concrete channels live in the discord, telegram and webhook subpackages.
package notifier
