package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
)

// memMessageRepo назначает seq и время под мьютексом, как транзакция с advisory-блокировкой.
type memMessageRepo struct {
	mu   sync.Mutex
	seq  int64
	last time.Time
	msgs []models.Message
}

func (r *memMessageRepo) Create(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := time.Now()
	if now.Before(r.last) {
		now = r.last
	}
	r.last = now
	msg.ID = uuid.New()
	msg.Seq = r.seq
	msg.CreatedAt = now
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *memMessageRepo) ListByErrand(_ context.Context, errandID uuid.UUID) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.msgs {
		if m.ErrandID == errandID {
			out = append(out, m)
		}
	}
	return out, nil
}

func newMessageFixture(status valueobject.ErrandStatus) (*MessageService, *recordingPublisher, *models.Errand) {
	errands := newMemErrandRepo()
	errand := errands.put(errandInStatus(uuid.New(), uuid.New(), status))
	svc := NewMessageService(&memMessageRepo{}, errands)
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)
	return svc, pub, errand
}

func TestMessageService_Send(t *testing.T) {
	svc, pub, errand := newMessageFixture(valueobject.ErrandStatusAccepted)
	conn := uuid.New()

	msg, err := svc.Send(context.Background(), SendMessageInput{
		ErrandID:     errand.ID,
		SenderID:     errand.RequesterID,
		Text:         "  Буду через 10 минут  ",
		OriginConnID: conn,
	})
	require.NoError(t, err)
	assert.Equal(t, "Буду через 10 минут", msg.Text)
	assert.NotEqual(t, uuid.Nil, msg.ID)

	events := pub.byEvent(EventNewMessage)
	require.Len(t, events, 1)
	assert.Equal(t, errand.ID, events[0].ErrandID)
	assert.Equal(t, conn, events[0].Exclude)
}

func TestMessageService_Send_Rejections(t *testing.T) {
	svc, pub, errand := newMessageFixture(valueobject.ErrandStatusAccepted)

	_, err := svc.Send(context.Background(), SendMessageInput{ErrandID: errand.ID, SenderID: uuid.New(), Text: "привет"})
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.Send(context.Background(), SendMessageInput{ErrandID: errand.ID, SenderID: errand.RequesterID, Text: "   "})
	assert.Equal(t, apperror.ErrCodeBadRequest, apperror.CodeOf(err))

	_, err = svc.Send(context.Background(), SendMessageInput{ErrandID: errand.ID, SenderID: errand.RequesterID, Text: strings.Repeat("а", 5001)})
	assert.Equal(t, apperror.ErrCodeBadRequest, apperror.CodeOf(err))

	_, err = svc.Send(context.Background(), SendMessageInput{ErrandID: uuid.New(), SenderID: errand.RequesterID, Text: "привет"})
	assert.True(t, apperror.IsNotFound(err))

	assert.Empty(t, pub.byEvent(EventNewMessage))
}

func TestMessageService_CancelledRunnerLosesAccess(t *testing.T) {
	svc, _, errand := newMessageFixture(valueobject.ErrandStatusCancelled)

	_, err := svc.History(context.Background(), errand.ID, *errand.RunnerID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.History(context.Background(), errand.ID, errand.RequesterID)
	assert.NoError(t, err)
}

func TestMessageService_HistoryKeepsSendOrder(t *testing.T) {
	svc, _, errand := newMessageFixture(valueobject.ErrandStatusInProgress)
	a, b := errand.RequesterID, *errand.RunnerID

	for i, sender := range []uuid.UUID{a, b, a} {
		_, err := svc.Send(context.Background(), SendMessageInput{ErrandID: errand.ID, SenderID: sender, Text: string(rune('x' + i))})
		require.NoError(t, err)
	}

	history, err := svc.History(context.Background(), errand.ID, b)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []uuid.UUID{a, b, a}, []uuid.UUID{history[0].SenderID, history[1].SenderID, history[2].SenderID})
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.Before(history[i-1].CreatedAt))
	}
}

func TestMessageService_BroadcastFollowsCommitOrder(t *testing.T) {
	svc, pub, errand := newMessageFixture(valueobject.ErrandStatusInProgress)
	senders := []uuid.UUID{errand.RequesterID, *errand.RunnerID}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(sender uuid.UUID) {
			defer wg.Done()
			_, _ = svc.Send(context.Background(), SendMessageInput{ErrandID: errand.ID, SenderID: sender, Text: "ping"})
		}(senders[i%2])
	}
	wg.Wait()

	events := pub.byEvent(EventNewMessage)
	require.Len(t, events, 50)
	for i := 1; i < len(events); i++ {
		prev := events[i-1].Data.(*models.Message)
		cur := events[i].Data.(*models.Message)
		assert.Less(t, prev.Seq, cur.Seq)
	}
	assert.Empty(t, svc.locks)
}

func TestMessageService_AuthorizeJoin(t *testing.T) {
	svc, _, errand := newMessageFixture(valueobject.ErrandStatusOpen)

	assert.NoError(t, svc.AuthorizeJoin(context.Background(), errand.ID, errand.RequesterID))
	assert.True(t, apperror.IsForbidden(svc.AuthorizeJoin(context.Background(), errand.ID, uuid.New())))
}
