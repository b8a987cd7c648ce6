// Nagato is a voice and text desktop assistant. Commands are interpreted by
// an LLM, carried out through OS automation and answered aloud.
//
// Usage:
//
//	nagato serve [--config nagato.yaml]
//	nagato ask open Safari and search for best pizza in Rome
//	nagato listen [--once]
package main

// version is set at build time via ldflags.
var version = "dev"

func main() {
	Execute()
}
