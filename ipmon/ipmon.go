// Package ipmon is the core of the ipmon application. It watches the host's
// public network address and tells a set of notifiers whenever it changes.
//
// Mechanism of Operation
//
// A Monitor owns a single background routine. The routine runs one cycle
// immediately once started, then sleeps for the configured interval measured
// from the end of the previous cycle, so a slow fetch never causes cycles to
// overlap. Each cycle asks the Detector for the current address and compares
// it with the last known one. If it differs, the last known address is updated
// first, then the Dispatcher calls every registered Notifier in the order they
// were registered.
//
// Nothing in a cycle is allowed to stop the routine. A failed fetch is written
// into the journal and the cycle is abandoned; a failing notifier is written
// into the journal and the remaining notifiers still run.
//
// Journal
//
// Everything worth knowing is written as an Event into a Journaler. On startup,
// the journal is read backwards to recover the last known address, so a
// restart of the background service does not re-notify for an address that
// was already reported, and does not miss one that changed while it was down.
//
package ipmon
