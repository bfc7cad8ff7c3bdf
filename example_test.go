package cartkeeper_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/cartkeeper"
	"github.com/aretw0/cartkeeper/pkg/adapters/memory"
	"github.com/aretw0/cartkeeper/pkg/domain"
)

// ExampleNew shows a cart surviving the expiry of its backend context.
func ExampleNew() {
	provider := memory.NewProvider()
	coord := cartkeeper.New(cartkeeper.WithProvider(provider))
	ctx := context.Background()

	c, err := coord.CreateCart(ctx)
	if err != nil {
		log.Fatal(err)
	}
	c, err = coord.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1})
	if err != nil {
		log.Fatal(err)
	}

	// The backend drops every context.
	provider.ExpireAll()

	c, err = coord.AddItem(ctx, c.ID, domain.ItemInput{ProductID: "p2", Name: "Mouse", Price: 50, Quantity: 2})
	if err != nil {
		log.Fatal(err)
	}
	for _, it := range c.Items {
		fmt.Printf("%s x%d\n", it.Name, it.Quantity)
	}
	fmt.Printf("total %.2f\n", c.Total)
	// Output:
	// Keyboard x1
	// Mouse x2
	// total 200.00
}
