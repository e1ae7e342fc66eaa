// Package session runs one streaming client connection.
//
// A [Session] pairs a reader goroutine, which decodes inbound frames and
// applies them to the store as full entity replacements, with a writer
// goroutine, which drains the client's hub subscriber onto the connection.
// Whichever side stops first moves the session to closing; the other side is
// cancelled and the subscriber is unregistered before [Session.Run] returns.
//
// Faults are confined to the session: I/O errors and malformed frames end
// that connection only.
package session
