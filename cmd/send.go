package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kilianp07/retailmarket/config"
	"github.com/kilianp07/retailmarket/core/command"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/infra/mqtt"
)

var (
	tariffID   int64
	authToken  string
	accepted   bool
	ackTimeout time.Duration
)

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Publish a RevokeTariffCommand on the command channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd, model.RevokeTariffCommand{AuthToken: authToken, TariffID: tariffID})
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Publish a TariffReply on the command channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd, model.TariffReply{TariffID: tariffID, Accepted: accepted})
	},
}

func init() {
	for _, c := range []*cobra.Command{revokeCmd, replyCmd} {
		c.Flags().Int64Var(&tariffID, "tariff", 0, "tariff id")
		c.Flags().DurationVar(&ackTimeout, "wait", 5*time.Second, "how long to wait for the acknowledgement, 0 to skip")
		_ = c.MarkFlagRequired("tariff")
		rootCmd.AddCommand(c)
	}
	revokeCmd.Flags().StringVar(&authToken, "token", "", "owner auth token")
	replyCmd.Flags().BoolVar(&accepted, "accepted", true, "accept the tariff, false proposes revocation")
}

// send publishes c and prints the matching acknowledgement.
func send(cmd *cobra.Command, c model.Command) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	id := uuid.NewString()
	raw, err := command.Encode(id, c)
	if err != nil {
		return err
	}
	mcfg := cfg.MQTT
	mcfg.ClientID = ""
	client, err := mqtt.NewClient(mcfg)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()

	acks := make(chan command.Ack, 1)
	if ackTimeout > 0 {
		reply := cfg.Transport.ReplyChannel
		if reply == "" {
			reply = cfg.Transport.CommandChannel + "/ack"
		}
		err := client.Subscribe(reply, mqtt.KindAck, func(_ string, payload []byte) {
			var ack command.Ack
			if json.Unmarshal(payload, &ack) == nil && ack.CommandID == id {
				select {
				case acks <- ack:
				default:
				}
			}
		})
		if err != nil {
			return err
		}
	}
	if err := mqtt.SendCommand(client, cfg.Transport.CommandChannel, raw); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s %s for tariff %d\n", c.Type(), id, c.Tariff())
	if ackTimeout <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), ackTimeout)
	defer cancel()
	select {
	case ack := <-acks:
		out, _ := json.Marshal(ack)
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if ack.Error != "" {
			return fmt.Errorf("command %s refused: %s", id, ack.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no acknowledgement for %s: %w", id, command.ErrCommandTimeout)
	}
}
