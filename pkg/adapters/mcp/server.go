// Package mcp exposes the cart service as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/cartkeeper/internal/logging"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CartResponse is the structured result of every cart tool.
type CartResponse struct {
	CartID string        `json:"cartId" jsonschema_description:"Stable cart (session) identifier"`
	Items  []domain.Item `json:"items" jsonschema_description:"Items in insertion order"`
	Total  float64       `json:"total" jsonschema_description:"Sum of price times quantity"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	return CartResponse{CartID: c.ID, Items: domain.CloneItems(c.Items), Total: c.Total}
}

type cartArgs struct {
	CartID string `json:"cartId"`
}

type addItemArgs struct {
	CartID    string  `json:"cartId"`
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type itemArgs struct {
	CartID   string `json:"cartId"`
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// Server wraps a cart service and exposes it as an MCP server.
type Server struct {
	service   ports.CartService
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server over service.
func NewServer(service ports.CartService, version string, opts ...Option) *Server {
	s := &Server{
		service:   service,
		mcpServer: server.NewMCPServer("cartkeeper-mcp", version, server.WithToolCapabilities(false)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// ServeStdio serves on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over Server-Sent Events on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_cart",
		mcp.WithDescription("Create an empty cart and return it."),
		mcp.WithOutputSchema[CartResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreateCart))

	s.mcpServer.AddTool(mcp.NewTool("get_cart",
		mcp.WithDescription("Return the items and total of a cart."),
		mcp.WithString("cartId", mcp.Required(), mcp.Description("Cart identifier")),
		mcp.WithOutputSchema[CartResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetCart))

	s.mcpServer.AddTool(mcp.NewTool("add_item",
		mcp.WithDescription("Append an item to a cart."),
		mcp.WithString("cartId", mcp.Required(), mcp.Description("Cart identifier")),
		mcp.WithString("productId", mcp.Required(), mcp.Description("Catalog product identifier")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithNumber("price", mcp.Required(), mcp.Min(0), mcp.Description("Unit price")),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Min(1), mcp.Description("Quantity")),
		mcp.WithOutputSchema[CartResponse](),
	), mcp.NewStructuredToolHandler(s.handleAddItem))

	s.mcpServer.AddTool(mcp.NewTool("remove_item",
		mcp.WithDescription("Remove an item from a cart. Item ids returned before a backend expiry remain usable."),
		mcp.WithString("cartId", mcp.Required(), mcp.Description("Cart identifier")),
		mcp.WithString("itemId", mcp.Required(), mcp.Description("Item identifier")),
		mcp.WithOutputSchema[CartResponse](),
	), mcp.NewStructuredToolHandler(s.handleRemoveItem))

	s.mcpServer.AddTool(mcp.NewTool("update_item",
		mcp.WithDescription("Set the quantity of an item in a cart."),
		mcp.WithString("cartId", mcp.Required(), mcp.Description("Cart identifier")),
		mcp.WithString("itemId", mcp.Required(), mcp.Description("Item identifier")),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Min(1), mcp.Description("New quantity")),
		mcp.WithOutputSchema[CartResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdateItem))
}

func (s *Server) handleCreateCart(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (CartResponse, error) {
	return s.respond("create_cart", "")(s.service.CreateCart(ctx))
}

func (s *Server) handleGetCart(ctx context.Context, _ mcp.CallToolRequest, args cartArgs) (CartResponse, error) {
	if args.CartID == "" {
		return CartResponse{}, errMissing("cartId")
	}
	return s.respond("get_cart", args.CartID)(s.service.GetCart(ctx, args.CartID))
}

func (s *Server) handleAddItem(ctx context.Context, _ mcp.CallToolRequest, args addItemArgs) (CartResponse, error) {
	switch {
	case args.CartID == "":
		return CartResponse{}, errMissing("cartId")
	case args.ProductID == "":
		return CartResponse{}, errMissing("productId")
	case args.Quantity < 1:
		return CartResponse{}, errors.New("quantity must be at least 1")
	case args.Price < 0:
		return CartResponse{}, errors.New("price must not be negative")
	}
	input, err := domain.ItemInput{
		ProductID: args.ProductID,
		Name:      args.Name,
		Price:     args.Price,
		Quantity:  args.Quantity,
	}.Sanitize()
	if err != nil {
		return CartResponse{}, err
	}
	return s.respond("add_item", args.CartID)(s.service.AddItem(ctx, args.CartID, input))
}

func (s *Server) handleRemoveItem(ctx context.Context, _ mcp.CallToolRequest, args itemArgs) (CartResponse, error) {
	if args.CartID == "" || args.ItemID == "" {
		return CartResponse{}, errMissing("cartId and itemId")
	}
	return s.respond("remove_item", args.CartID)(s.service.RemoveItem(ctx, args.CartID, args.ItemID))
}

func (s *Server) handleUpdateItem(ctx context.Context, _ mcp.CallToolRequest, args itemArgs) (CartResponse, error) {
	if args.CartID == "" || args.ItemID == "" {
		return CartResponse{}, errMissing("cartId and itemId")
	}
	if args.Quantity < 1 {
		return CartResponse{}, errors.New("quantity must be at least 1")
	}
	return s.respond("update_item", args.CartID)(s.service.UpdateItem(ctx, args.CartID, args.ItemID, args.Quantity))
}

// respond converts a service result into a tool result, prefixing errors with their kind.
func (s *Server) respond(tool, cartID string) func(*domain.Cart, error) (CartResponse, error) {
	return func(c *domain.Cart, err error) (CartResponse, error) {
		if err != nil {
			kind := domain.KindOf(err)
			s.logger.Warn("MCP tool failed", "tool", tool, "cart_id", cartID, "kind", kind, "err", err)
			return CartResponse{}, fmt.Errorf("%s: %w", kind, err)
		}
		return newCartResponse(c), nil
	}
}

func errMissing(field string) error {
	return fmt.Errorf("missing required argument %s", field)
}
