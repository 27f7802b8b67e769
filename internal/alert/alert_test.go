package alert

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	got []Alert
	err error
}

func (r *recorder) Publish(ctx context.Context, a Alert) error {
	r.got = append(r.got, a)
	return r.err
}

func TestMultiPublishesToAll(t *testing.T) {
	a, b := &recorder{err: errors.New("down")}, &recorder{}
	err := Multi{a, b}.Publish(context.Background(), Alert{Type: TypeBanSuspected, CampaignID: 3})

	assert.EqualError(t, err, "down")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := LogPublisher{Logger: zerolog.New(&buf)}
	assert.NoError(t, p.Publish(context.Background(), Alert{Type: TypeBanSuspected, CampaignID: 9, Message: "paused"}))
	assert.Contains(t, buf.String(), `"campaign_id":9`)
	assert.Contains(t, buf.String(), `"message":"paused"`)
}
