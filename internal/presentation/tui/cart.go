// Package tui renders cartkeeper output for terminals.
package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/cartkeeper/pkg/domain"
)

// CartMarkdown renders the cart as a markdown section headed by title.
func CartMarkdown(title string, c *domain.Cart) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	if c == nil {
		b.WriteString("_no cart_\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Cart `%s`\n\n", c.ID)
	if len(c.Items) == 0 {
		b.WriteString("_empty_\n\n")
	} else {
		b.WriteString("| Item | Product | Name | Price | Qty | Subtotal |\n")
		b.WriteString("|---|---|---|---:|---:|---:|\n")
		for _, it := range c.Items {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %.2f | %d | %.2f |\n",
				it.ID, it.ProductID, it.Name, it.Price, it.Quantity, it.Price*float64(it.Quantity))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "**Total:** %.2f\n", c.Total)
	return b.String()
}
