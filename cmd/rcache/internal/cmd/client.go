package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcache/rcache/pkg/client"
	"github.com/rcache/rcache/pkg/message"
)

const clientTimeout = 5 * time.Second

var clientCmd = &cobra.Command{
	Use:   "client <host:port> GET|SET|STATS [key] [value]",
	Short: "Issue one request against a running rcache server",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		addr, verb := args[0], args[1]
		rest := args[2:]

		ctx, cancel := context.WithTimeout(c.Context(), clientTimeout)
		defer cancel()

		cl, err := client.Dial(ctx, addr)
		if err != nil {
			return err
		}
		defer func() { _ = cl.Close() }()

		out, err := runVerb(ctx, cl, verb, rest)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func runVerb(ctx context.Context, cl *client.Client, verb string, rest []string) (string, error) {
	switch verb {
	case "GET":
		if len(rest) != 1 {
			return "", fmt.Errorf("usage: client <addr> GET <key>")
		}
		payload, hit, err := cl.Get(ctx, []byte(rest[0]))
		if err != nil {
			return "", err
		}
		if !hit {
			return "(miss)", nil
		}
		return renderPayload(*payload), nil

	case "SET":
		if len(rest) != 2 {
			return "", fmt.Errorf("usage: client <addr> SET <key> <value>")
		}
		payload := message.Payload{TypeID: message.TypeText, Data: []byte(rest[1])}
		if err := cl.Set(ctx, []byte(rest[0]), payload); err != nil {
			return "", err
		}
		return "OK", nil

	case "STATS":
		report, err := cl.Stats(ctx)
		if err != nil {
			return "", err
		}
		return report, nil

	default:
		return "", fmt.Errorf("unknown verb %q (expected GET, SET or STATS)", verb)
	}
}

// renderPayload decodes the payload as UTF-8 when type_id says it's text;
// otherwise it falls back to a debug rendering.
func renderPayload(p message.Payload) string {
	if p.TypeID == message.TypeText {
		return string(p.Data)
	}
	return fmt.Sprintf("%#v", p)
}
