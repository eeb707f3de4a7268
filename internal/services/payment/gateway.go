package payment

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	pubnub "github.com/pubnub/go/v7"
)

type (
	Config struct {
		BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
		KeyID     string `json:"keyId" mapstructure:"key_id"`
		KeySecret string `json:"keySecret" mapstructure:"key_secret"`

		PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
		PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
		PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
		PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
		PNCipherKey string `json:"pn_cipherKey" mapstructure:"pn_cipherkey"`
	}

	// Gateway is the adapter in front of the external payment processor.
	// Order creation and refunds go out over its signed REST client; capture
	// confirmations come back either through the client's verify call or
	// through the processor's PubNub notification channel.
	Gateway struct {
		keySecret string

		pnChannels []string
		sub        *subscribe

		client *Client
	}
)

// Capture is a processor notification that a payment has been captured
// out-of-band. It carries exactly the proof the verify step needs.
type Capture struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// New returns a new Gateway instance. The PubNub subscription is optional:
// with no subscribe key configured the gateway still serves client-initiated
// verification.
func New(ctx context.Context, cfg *Config) (*Gateway, error) {
	g := &Gateway{
		keySecret:  cfg.KeySecret,
		pnChannels: []string{cfg.PNChannel},
		client:     newClient(ctx, &ClientConfig{BaseURL: cfg.BaseURL, KeyID: cfg.KeyID, KeySecret: cfg.KeySecret}),
	}

	if cfg.PNSubKey == "" {
		return g, nil
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PNUUID))
	pnCfg.SubscribeKey = cfg.PNSubKey
	pnCfg.CipherKey = cfg.PNCipherKey
	pnCfg.SecretKey = cfg.PNSubSecret

	sub := &subscribe{
		pn:  pubnub.NewPubNub(pnCfg),
		lis: pubnub.NewListener(),
	}
	go sub.processSubscription(ctx)

	sub.pn.AddListener(sub.lis)
	sub.pn.Subscribe().Channels(g.pnChannels).Execute()
	g.sub = sub

	return g, nil
}

// CreateOrder creates an external payment order for the given minor-unit
// amount and returns the processor's order id.
func (g *Gateway) CreateOrder(ctx context.Context, amountMinor int64, currency string, notes map[string]string) (string, error) {
	return g.client.createOrder(ctx, amountMinor, currency, notes)
}

// VerifySignature checks the capture proof for an order. Pure and
// side-effect free; it must run before any store is touched.
func (g *Gateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verifyHmac(g.keySecret, orderID, paymentID, signature)
}

// Refund refunds a captured payment and returns the processor refund id.
func (g *Gateway) Refund(ctx context.Context, paymentID string, amountMinor int64) (string, error) {
	return g.client.refund(ctx, paymentID, amountMinor)
}

// SetCaptureChannel sets the channel capture notifications are delivered on.
func (g *Gateway) SetCaptureChannel(ch chan *Capture) {
	if g.sub != nil {
		g.sub.ch = ch
	}
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *Capture
}

func (s *subscribe) processSubscription(ctx context.Context) {
	listener := s.lis
	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to processor notification channel")

			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to processor notification channel")

			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from processor notification channel")

			default:
				log.Printf("processor notification channel status: %v", st.Category)
			}

		case message := <-listener.Message:
			raw, ok := message.Message.(string)
			if !ok {
				continue
			}

			var c Capture
			dec := json.NewDecoder(strings.NewReader(raw))
			if err := dec.Decode(&c); err != nil {
				log.Println(err)
				continue
			}

			if s.ch != nil {
				s.ch <- &c
			}

		case <-ctx.Done():
			log.Println("close processor notification subscription")
			return
		}
	}
}
