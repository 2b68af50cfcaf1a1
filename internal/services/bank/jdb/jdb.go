package jdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gatepass/internal/status"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"
)

type Config struct {
	BaseURL    string
	PartnerID  string
	ClientID   string
	ClientKey  string
	HMACKey    string
	MerchantID string

	// JDB publishes settlement callbacks over its own PubNub keyspace.
	PNSubKey    string
	PNSubSecret string
	PNUUID      string
	PNChannel   string
	PNCipherKey string
}

// JDB is the gateway implementation for the JDB dynamic-QR rails. One
// order maps to one bill number; settlement callbacks arrive on a
// per-order PubNub channel derived from the merchant id.
type JDB struct {
	merchantID string

	client *client
	sub    *subscription
	cancel context.CancelFunc
}

// payload is JDB's wire shape for a settled transaction.
type payload struct {
	RefID         string          `json:"refNo"`
	UUID          string          `json:"billNumber"`
	Ccy           string          `json:"sourceCurrency"`
	Payer         string          `json:"sourceName"`
	AccountNumber string          `json:"sourceAccount"`
	Amount        decimal.Decimal `json:"txnAmount"`
	CreatedAt     string          `json:"txnDateTime"`
}

func New(ctx context.Context, cfg *Config) (*JDB, error) {
	c := newClient(cfg.BaseURL, cfg.PartnerID, cfg.ClientID, cfg.ClientKey, cfg.HMACKey)

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	c.setAccessToken(token)

	loopCtx, cancel := context.WithCancel(context.Background())
	go c.refreshTokenLoop(loopCtx)

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PNUUID))
	pnCfg.SubscribeKey = cfg.PNSubKey
	pnCfg.CipherKey = cfg.PNCipherKey
	pnCfg.SecretKey = cfg.PNSubSecret

	sub := &subscription{
		pn:  pubnub.NewPubNub(pnCfg),
		lis: pubnub.NewListener(),
	}
	sub.pn.AddListener(sub.lis)
	go sub.run(loopCtx)

	return &JDB{
		merchantID: cfg.MerchantID,
		client:     c,
		sub:        sub,
		cancel:     cancel,
	}, nil
}

func (j *JDB) Provider() string { return "jdb" }

// CreateOrder opens the order at JDB and subscribes to its callback
// channel before returning the EMV QR payload.
func (j *JDB) CreateOrder(ctx context.Context, f *status.OrderForm) (string, error) {
	if f.MerchantID == "" {
		f.MerchantID = j.merchantID
	}

	emvCode, err := j.client.generateQR(ctx, f)
	if err != nil {
		return "", err
	}

	j.watchOrder(f.UUID)

	return emvCode, nil
}

func (j *JDB) CheckTransaction(ctx context.Context, uuid string) (*status.Transaction, error) {
	return j.client.lookupTransaction(ctx, uuid)
}

func (j *JDB) SetTransactionChannel(ch chan *status.Transaction) {
	j.sub.ch = ch
}

func (j *JDB) Close(ctx context.Context) error {
	j.sub.pn.UnsubscribeAll()
	j.cancel()
	return nil
}

// watchOrder subscribes to the order's callback channel, rewinding the
// timetoken a couple of minutes so a callback published during the
// subscribe handshake is not lost.
func (j *JDB) watchOrder(uuid string) {
	channel := fmt.Sprintf("%s_%s", j.merchantID, uuid)
	tt := time.Now().Add(-2*time.Minute).Unix() * 10000

	j.sub.pn.Subscribe().Channels([]string{channel}).Timetoken(tt).Execute()
}

type subscription struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *status.Transaction
}

func (s *subscription) run(ctx context.Context) {
	for {
		select {
		case st := <-s.lis.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("jdb: connected to pubnub")

			case pubnub.PNReconnectedCategory:
				log.Println("jdb: reconnected to pubnub")

			case pubnub.PNDisconnectedCategory:
				log.Println("jdb: disconnected from pubnub")

			case pubnub.PNAccessDeniedCategory:
				log.Println("jdb: pubnub access denied")

			case pubnub.PNTimeoutCategory:
				log.Println("jdb: pubnub timeout")

			default:
				log.Printf("jdb: pubnub status: %v", st.Category)
			}

		case message := <-s.lis.Message:
			raw, ok := message.Message.(string)
			if !ok {
				log.Printf("jdb: unexpected callback message type %T", message.Message)
				continue
			}

			var p payload
			if err := json.NewDecoder(strings.NewReader(raw)).Decode(&p); err != nil {
				log.Printf("jdb: decode callback: %v", err)
				continue
			}

			tran, err := p.toDomain()
			if err != nil {
				log.Printf("jdb: callback payload: %v", err)
				continue
			}

			if s.ch != nil {
				s.ch <- tran
			}

		case <-ctx.Done():
			log.Println("jdb: closing callback subscription")
			return
		}
	}
}

func (p *payload) toDomain() (*status.Transaction, error) {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", p.CreatedAt, time.Local)
	if err != nil {
		return nil, err
	}

	return &status.Transaction{
		RefID:         p.RefID,
		UUID:          p.UUID,
		Ccy:           p.Ccy,
		Payer:         p.Payer,
		AccountNumber: p.AccountNumber,
		Amount:        p.Amount,
		CreatedAt:     ts,
	}, nil
}
