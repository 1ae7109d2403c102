package theme

import (
	"fmt"
	"io"
)

// Banner returns the startup banner.
func Banner() string {
	const green = "\033[32m"
	const red = "\033[31m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	return "" +
		green + "  ╦═╗╦ ╦╔═╗╔═╗╦ ╦╔═╗╦═╗╔╦╗\n" + reset +
		green + "  ╠╦╝║ ║║ ╦║ ╦║ ║╠═╣╠╦╝ ║║\n" + reset +
		green + "  ╩╚═╚═╝╚═╝╚═╝╚═╝╩ ╩╩╚══╩╝\n" + reset +
		yellow + "  ─────────────────────────\n" + reset +
		"  trust checks on demand " + green + "🟢" + reset + yellow + "🟡" + reset + red + "🔴" + reset + "\n"
}

// PrintBanner writes the banner to w.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner())
}
