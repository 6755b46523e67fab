// Package gateway supervises the JVM that hosts the rules engine.
//
// Start launches java with the engine jars on the classpath and the bridge
// entrypoint as main class, then reads the child's stdout line by line
// until it prints
//
//	PORT: <n>
//
// Lines before and after the marker are logged with source=jvm. The
// supervisor then connects a bridge.Client to ws://127.0.0.1:<n>/bridge.
//
// The JVM and the connection end together: if the JVM exits the client is
// closed, and if the connection drops the JVM is killed. Stop performs an
// orderly shutdown (shutdown RPC, grace period, kill). A runtime cleanup
// runs the same routine if a Gateway is dropped without Stop.
package gateway
