// Package bridge is the Go side of the inter-process bridge to the rules
// engine JVM.
//
// The JVM runs a bridge server that exposes its object graph over one
// WebSocket connection. Every message is a JSON-RPC 2.0 frame:
//
//	invoke     {target, method, args}  -> value
//	field.get  {target, name}          -> value
//	field.set  {target, name, value}   -> null
//	release    {ref}                   -> null
//	shutdown   {}                      -> null
//
// A target is either {"ref": id} for an instance or {"class": fqcn} for the
// static side of a class (method "<init>" constructs). Values are tagged
// JSON; arrays and java.util.List results arrive as lists, everything else
// that is not a primitive, string or byte[] arrives as a ref. The server
// keeps one id per live Java object and counts the references it hands out;
// release drops one of them.
//
// # Remote handles
//
// Caller is the single capability every higher layer is written against.
// Object and Class bind a Caller to an instance or a class and forward
// calls to it explicitly, so wrappers compose a handle plus their own typed
// methods instead of forwarding attribute access reflectively.
//
// Client implements Caller over gorilla/websocket. Tests substitute an
// in-process fake.
//
// # Lifetime
//
// AutoRelease attaches a runtime cleanup to a wrapper that releases its
// remote reference once the wrapper is unreachable. It is a safety net:
// explicit Dispose/Stop/Release calls are the primary release path.
package bridge
