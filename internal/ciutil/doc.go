// Package ciutil detects CI environments and resolves the settings test
// infrastructure reads from them.
package ciutil
