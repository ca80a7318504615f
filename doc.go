// Package boxon implements a declarative, bidirectional codec for framed
// binary messages: struct tags describe a wire layout once, and the same
// Template decodes and encodes it.
package boxon
