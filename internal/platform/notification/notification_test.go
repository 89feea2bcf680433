package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	name   string
	err    error
	events []Event
}

func (r *recordingPublisher) Name() string { return r.name }

func (r *recordingPublisher) Publish(_ context.Context, evt Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func TestNewBundleCreated(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	evt := NewBundleCreated("bundle-1", 4, at)

	assert.Equal(t, EventBundleCreated, evt.Type)
	assert.Equal(t, "bundle-1", evt.BundleID)
	assert.Equal(t, 4, evt.EntryCount)
	assert.Equal(t, time.UTC, evt.Timestamp.Location())
	assert.NotEmpty(t, evt.ID)
}

func TestMulti_PublishesToAllChannels(t *testing.T) {
	a := &recordingPublisher{name: "a"}
	b := &recordingPublisher{name: "b", err: errors.New("boom")}
	c := &recordingPublisher{name: "c"}

	err := Multi{a, b, c}.Publish(context.Background(), NewBundleCreated("bundle-1", 1, time.Now()))
	require.Error(t, err)

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Len(t, c.events, 1)
	assert.Equal(t, []string{"b"}, FailedChannels(err))
}

func TestMulti_NoFailures(t *testing.T) {
	err := Multi{&recordingPublisher{name: "a"}, Nop{}}.Publish(context.Background(), Event{})
	assert.NoError(t, err)
	assert.Nil(t, FailedChannels(err))
}

func TestFailedChannels_Several(t *testing.T) {
	err := Multi{
		&recordingPublisher{name: "webhook", err: errors.New("500")},
		&recordingPublisher{name: "mqtt", err: errors.New("not connected")},
	}.Publish(context.Background(), Event{})
	assert.ElementsMatch(t, []string{"webhook", "mqtt"}, FailedChannels(err))
}

// fakeToken and fakeClient stand in for a broker connection.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mqtt.Client
	err  error
	msgs []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, published{topic, qos, retained, payload.([]byte)})
	return newFakeToken(c.err)
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	p := newMQTTPublisher(client, "")

	evt := NewBundleCreated("bundle-9", 3, time.Now())
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, client.msgs, 1)
	msg := client.msgs[0]
	assert.Equal(t, DefaultMQTTTopic, msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)

	var got Event
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "bundle-9", got.BundleID)
	assert.Equal(t, 3, got.EntryCount)
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := newMQTTPublisher(client, "custom/topic")

	err := p.Publish(context.Background(), Event{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom/topic")
	assert.Equal(t, "mqtt", p.Name())
}
