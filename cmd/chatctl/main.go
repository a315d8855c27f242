// Command chatctl drives the chat client and the room state protocol by hand.
//
// Credentials and endpoints come from the same environment as the service (SE_EMAIL,
// SE_PASSWORD, SE_LOGIN_URL, SE_CHAT_URL, PROJECT_NAME, STATE_HOST, ...); flags override them.
//
// Examples:
//
//	chatctl search img --mine
//	chatctl transcript 11540
//	chatctl send 11540 "hello"
//	chatctl state show --project sparkle
//	chatctl state set 11540 keepAlive=true --project sparkle
//	chatctl state decode 'https://sparkle.glitch.me/?_?%7B%22t%22%3A1%7D' --project sparkle
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
