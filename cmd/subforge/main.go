package main

import (
	// Register Plugins via side-effects
	_ "subforge/internal/publishers/file"
	_ "subforge/internal/publishers/github"
	_ "subforge/internal/publishers/stdout"
	_ "subforge/internal/selectors/strategies"
)

func main() {
	Execute()
}
