package goroutine

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	out := &syncBuffer{}
	log := logrus.New()
	log.SetOutput(out)

	rh := NewRecoveryHandler(log)
	done := make(chan struct{})

	rh.SafeGo("worker", func() {
		defer close(done)
		panic("boom")
	})
	<-done

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("boom"))
	}, time.Second, 10*time.Millisecond)
}

func TestSafeGoWithContext_PassesContext(t *testing.T) {
	rh := NewRecoveryHandler(logrus.New())
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	got := make(chan context.Context, 1)

	rh.SafeGoWithContext(ctx, "ctx", func(c context.Context) { got <- c })

	assert.Equal(t, ctx, <-got)
}
