// Package main runs the chat server: a single event loop serving the chat
// HTTP API on a bind address given as the sole optional argument.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dwerner/chat-mio/internal/chat"
	"github.com/dwerner/chat-mio/pkg/chatmio"
)

func main() {
	log.SetFlags(log.LstdFlags)

	if len(os.Args) > 2 {
		log.Fatalf("usage: %s [bind_address]", os.Args[0])
	}

	config, err := chatmio.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if len(os.Args) > 1 {
		config.Addr = os.Args[1]
	}
	if _, err := net.ResolveTCPAddr("tcp", config.Addr); err != nil {
		log.Fatalf("invalid bind address %q: %v", config.Addr, err)
	}
	config.Logger = log.New(os.Stderr, "", log.LstdFlags)

	server, err := chatmio.New(config)
	if err != nil {
		log.Fatalf("creating server: %v", err)
	}

	service := chat.NewService(config.Logger)
	service.SetSink(server)
	server.OnConnClose(service.Leave)

	router := buildRouter(service, config)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", config.Addr)
	if err := server.ListenAndServe(router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func buildRouter(service *chat.Service, config chatmio.Config) *chatmio.Router {
	router := chatmio.NewRouter()
	router.Use(
		chatmio.Recovery(),
		chatmio.Prometheus(),
	)
	if config.AuthSecret != "" {
		router.Use(chatmio.Auth(chatmio.AuthConfig{
			Secret:    config.AuthSecret,
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}

	router.POST("/chat", chatHandler(service))
	router.GET("/channels", listChannelsHandler(service))
	router.GET("/channels/:name/messages", channelMessagesHandler(service))
	router.GET("/channels/:name/members", channelMembersHandler(service))
	router.GET("/healthz", healthHandler)
	router.GET("/metrics", chatmio.MetricsHandler())

	return router
}

// chatHandler accepts one frame per request and acts on it for the sending
// connection. Handlers run on the event loop, so service calls need no
// locking.
func chatHandler(service *chat.Service) chatmio.HandlerFunc {
	return func(ctx *chatmio.Context) error {
		frame, err := chat.DecodeFrame(ctx.Body())
		if err != nil {
			return chatmio.NewHTTPError(400, err.Error())
		}

		switch frame.Type {
		case chat.TypeJoin:
			service.Join(ctx.ConnID(), frame.Channel, frame.Sender)
			return ctx.NoContent()
		case chat.TypeLeave:
			service.Leave(ctx.ConnID())
			return ctx.NoContent()
		default:
			msg, err := service.Send(ctx.ConnID(), frame.Channel, frame.Body)
			if errors.Is(err, chat.ErrNotMember) {
				return chatmio.NewHTTPError(400, err.Error())
			}
			if err != nil {
				return err
			}
			return ctx.JSON(200, msg)
		}
	}
}

func listChannelsHandler(service *chat.Service) chatmio.HandlerFunc {
	return func(ctx *chatmio.Context) error {
		return ctx.JSON(200, service.Channels())
	}
}

func channelMessagesHandler(service *chat.Service) chatmio.HandlerFunc {
	return func(ctx *chatmio.Context) error {
		return ctx.JSON(200, service.Messages(ctx.Param("name")))
	}
}

func channelMembersHandler(service *chat.Service) chatmio.HandlerFunc {
	return func(ctx *chatmio.Context) error {
		return ctx.JSON(200, service.Members(ctx.Param("name")))
	}
}

func healthHandler(ctx *chatmio.Context) error {
	return ctx.String(200, "ok")
}
