package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/sigbook/pkg/crypto"
	"github.com/uhyunpark/sigbook/pkg/order"
)

var (
	platformName string
	buyCurrency  string
	sellCurrency string
	buyAmount    string
	sellAmount   string
	receiverPK   string
	keyHex       string
	submitURL    string
)

var rootCmd = &cobra.Command{
	Use:   "sign-order",
	Short: "Sign an order submission",
	Long: "Builds an order payload, signs its canonical form with an Ethereum or Algorand key " +
		"and prints the submission. With --submit it is POSTed to <url>/trade.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := crypto.ParsePlatform(platformName)
		signer, err := loadSigner(platform, keyHex)
		if err != nil {
			return err
		}

		submission, err := buildSubmission(signer, orderParams{
			ReceiverPK:   receiverPK,
			BuyCurrency:  buyCurrency,
			SellCurrency: sellCurrency,
			BuyAmount:    buyAmount,
			SellAmount:   sellAmount,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", submission)

		if submitURL == "" {
			return nil
		}
		accepted, err := submit(submitURL, submission)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "accepted: %v\n", accepted)
		return nil
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&platformName, "platform", "Ethereum", "signing platform (Ethereum or Algorand)")
	f.StringVar(&buyCurrency, "buy-currency", "Algorand", "currency to buy")
	f.StringVar(&sellCurrency, "sell-currency", "Ethereum", "currency to sell")
	f.StringVar(&buyAmount, "buy-amount", "1", "amount to buy")
	f.StringVar(&sellAmount, "sell-amount", "1", "amount to sell")
	f.StringVar(&receiverPK, "receiver", "", "receiver address (defaults to the sender)")
	f.StringVar(&keyHex, "key", "", "hex private key (Ethereum) or 32-byte seed (Algorand); generated if empty")
	f.StringVar(&submitURL, "submit", "", "base URL of a running node, e.g. http://localhost:5002")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadSigner(platform crypto.Platform, key string) (crypto.MessageSigner, error) {
	if key == "" {
		signer, err := crypto.NewSigner(platform)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "generated %s key for %s (KEEP SECRET!): %s\n", platform, signer.SignerID(), secretOf(signer))
		return signer, nil
	}

	switch platform {
	case crypto.PlatformEthereum:
		return crypto.FromPrivateKeyHex(key)
	case crypto.PlatformAlgorand:
		return crypto.FromAlgorandSeedHex(key)
	default:
		return nil, fmt.Errorf("unsupported platform %q", platformName)
	}
}

func secretOf(signer crypto.MessageSigner) string {
	switch s := signer.(type) {
	case *crypto.Signer:
		return s.PrivateKeyHex()
	case *crypto.AlgorandSigner:
		return s.SeedHex()
	}
	return ""
}

type orderParams struct {
	ReceiverPK   string
	BuyCurrency  string
	SellCurrency string
	BuyAmount    string
	SellAmount   string
}

// buildSubmission writes the payload with a fixed key order, signs its canonical form
// and returns {"sig": ..., "payload": ...}
func buildSubmission(signer crypto.MessageSigner, p orderParams) ([]byte, error) {
	buy, err := decimal.NewFromString(p.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid buy amount: %w", err)
	}
	sell, err := decimal.NewFromString(p.SellAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid sell amount: %w", err)
	}
	receiver := p.ReceiverPK
	if receiver == "" {
		receiver = signer.SignerID()
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, kv := range []struct {
		key   string
		value any
	}{
		{order.KeyPlatform, signer.Platform().String()},
		{order.KeySenderPK, signer.SignerID()},
		{order.KeyReceiverPK, receiver},
		{order.KeyBuyCurrency, p.BuyCurrency},
		{order.KeySellCurrency, p.SellCurrency},
		{order.KeyBuyAmount, json.Number(buy.String())},
		{order.KeySellAmount, json.Number(sell.String())},
	} {
		if i > 0 {
			b.WriteString(", ")
		}
		value, err := json.Marshal(kv.value)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%q: %s", kv.key, value)
	}
	b.WriteByte('}')
	payload := b.String()

	message, err := order.CanonicalJSON([]byte(payload))
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignMessage(message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	sigJSON, err := json.Marshal(sig)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"sig": %s, "payload": %s}`, sigJSON, payload)), nil
}

func submit(baseURL string, body []byte) (bool, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(strings.TrimRight(baseURL, "/")+"/trade", "application/json", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to submit: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("node returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var accepted bool
	if err := json.Unmarshal(data, &accepted); err != nil {
		return false, fmt.Errorf("unexpected response %q: %w", data, err)
	}
	return accepted, nil
}
