// Package pintest exercises the rig's GPIO, PWM and ADC pins for bench
// checks.
//
// Export and Unexport report their outcome as an ExportResult. A pin the
// rig already had exported is AlreadyExported, which callers treat as
// success. GPI and GPO share one export per GPIO number.
//
// Input pins can be watched: a Watcher re-reads the pin every refresh
// interval (750ms by default) while active and checks back every idle
// interval (1500ms) while paused.
package pintest
