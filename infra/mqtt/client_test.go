package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilos1/harvestplan/core/lp"
	coremetrics "github.com/keilos1/harvestplan/core/metrics"
	"github.com/keilos1/harvestplan/core/model"
	coremon "github.com/keilos1/harvestplan/core/monitoring"
	coremqtt "github.com/keilos1/harvestplan/core/mqtt"
)

type dummyToken struct{ err error }

func (d *dummyToken) Wait() bool                     { return true }
func (d *dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d *dummyToken) Error() error                   { return d.err }

func (d *dummyToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// mockClient implements pahoClient.
type mockClient struct {
	opts        *paho.ClientOptions
	published   []published
	publishErrs []error
	connectErr  error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, retained, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

func useMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

type publishSink struct {
	coremetrics.NopSink
	events []coremetrics.PublishEvent
}

func (p *publishSink) RecordPublish(ev coremetrics.PublishEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func sampleMessage() coremqtt.PlanMessage {
	return coremqtt.PlanMessage{
		RunID:     "run-1",
		Status:    lp.Optimal,
		Objective: 887.09,
		Plan:      []model.Entry{{Site: 2, Month: 1, Value: 33.33}},
	}
}

func TestPublishPlan(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	sink := &publishSink{}
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", TopicPrefix: "farm/north/", QoS: 1, Retain: true}, sink)
	require.NoError(t, err)

	require.NoError(t, cli.PublishPlan(context.Background(), sampleMessage()))
	require.Len(t, mc.published, 1)
	p := mc.published[0]
	assert.Equal(t, "farm/north/plan", p.topic)
	assert.Equal(t, byte(1), p.qos)
	assert.True(t, p.retain)

	var got map[string]any
	require.NoError(t, json.Unmarshal(p.payload, &got))
	assert.Equal(t, "Optimal", got["status"])
	assert.Equal(t, "run-1", got["run_id"])

	require.Len(t, sink.events, 1)
	assert.True(t, sink.events[0].Success)
	assert.Equal(t, 1, sink.events[0].Attempts)
}

func TestPublishPlan_Retries(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1}, nil)
	require.NoError(t, err)

	require.NoError(t, cli.PublishPlan(context.Background(), sampleMessage()))
	assert.Len(t, mc.published, 2)
	assert.Equal(t, "harvest/plan", mc.published[0].topic)
}

type recordMonitor struct {
	coremon.NopMonitor
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}

func TestPublishPlan_GivesUp(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	useMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })
	sink := &publishSink{}

	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1}, sink)
	require.NoError(t, err)
	err = cli.PublishPlan(context.Background(), sampleMessage())
	assert.ErrorIs(t, err, coremqtt.ErrPublish)
	assert.Len(t, mc.published, 3)
	require.Error(t, mon.err)
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Equal(t, "run-1", mon.tags["run_id"])
	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].Success)
	assert.Equal(t, 3, sink.events[0].Attempts)
}

func TestPublishPlan_StopsOnCancel(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail")}}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 5, BackoffMS: 10000}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = cli.PublishPlan(ctx, sampleMessage())
	assert.ErrorIs(t, err, coremqtt.ErrPublish)
	assert.Contains(t, err.Error(), context.Canceled.Error())
	assert.Len(t, mc.published, 1)
}

func TestNewPahoClient_ConnectError(t *testing.T) {
	useMock(t, &mockClient{connectErr: errors.New("refused")})
	_, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, nil)
	assert.EqualError(t, err, "refused")
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", LWTTopic: "harvest/status", LWTPayload: "offline", LWTQoS: 1}, nil)
	require.NoError(t, err)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "harvest/status", mc.opts.WillTopic)
	assert.Equal(t, "offline", string(mc.opts.WillPayload))
	cli.Disconnect()
	assert.Empty(t, mc.published)
}

func TestConfig_DefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "harvest/plan", c.PlanTopic())
	assert.Equal(t, 3, c.MaxRetries)
	assert.NotEmpty(t, c.ClientID)
	assert.NoError(t, c.Validate())

	c.Enabled = true
	assert.Error(t, c.Validate())
	c.Broker = "tcp://broker:1883"
	assert.NoError(t, c.Validate())
	c.QoS = 3
	assert.Error(t, c.Validate())
}

func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	tlsCfg, err := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}.LoadTLSConfig()
	require.NoError(t, err)
	assert.Len(t, tlsCfg.Certificates, 1)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}
