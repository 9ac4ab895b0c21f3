package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/voxgate/voxgate/internal/models"
	memoryrepo "github.com/voxgate/voxgate/internal/repositories/memory"
	"github.com/voxgate/voxgate/internal/utils"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeSleeper struct {
	mu       sync.Mutex
	slept    []time.Duration
	errAfter int // fail from the nth call on (1-based); 0 disables
	calls    int
	onSleep  func(n int)
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.slept = append(f.slept, d)
	fail := f.errAfter > 0 && n >= f.errAfter
	cb := f.onSleep
	f.mu.Unlock()

	if cb != nil {
		cb(n)
	}
	if fail {
		return context.Canceled
	}
	return nil
}

func (f *fakeSleeper) durations() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}

type fakeBot struct {
	tokenErr   error
	convErr    error
	tokenCount int
	convCount  int

	postErrs  []error // error per successive PostActivity call; exhausted = success
	postIDs   []string
	postCalls int

	lists     [][]models.Activity // per ListActivities call; last entry repeats
	listErrs  []error
	listCalls int
}

func (f *fakeBot) GenerateToken(context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	f.tokenCount++
	return fmt.Sprintf("token-%d", f.tokenCount), nil
}

func (f *fakeBot) StartConversation(context.Context, string) (string, error) {
	if f.convErr != nil {
		return "", f.convErr
	}
	f.convCount++
	return fmt.Sprintf("conv-%d", f.convCount), nil
}

func (f *fakeBot) PostActivity(_ context.Context, _, _ string, _ models.Activity) (string, error) {
	idx := f.postCalls
	f.postCalls++
	if idx < len(f.postErrs) && f.postErrs[idx] != nil {
		return "", f.postErrs[idx]
	}
	if idx < len(f.postIDs) {
		return f.postIDs[idx], nil
	}
	return "A1", nil
}

func (f *fakeBot) ListActivities(context.Context, string, string) ([]models.Activity, error) {
	idx := f.listCalls
	f.listCalls++
	if idx < len(f.listErrs) && f.listErrs[idx] != nil {
		return nil, f.listErrs[idx]
	}
	if len(f.lists) == 0 {
		return nil, nil
	}
	if idx >= len(f.lists) {
		idx = len(f.lists) - 1
	}
	return f.lists[idx], nil
}

func userEcho(id string) models.Activity {
	return models.Activity{
		ID:   id,
		Type: models.ActivityTypeMessage,
		From: models.ActivityFrom{ID: "user", Role: models.RoleUser},
	}
}

func botReply(id, replyTo, typ, text string) models.Activity {
	return models.Activity{
		ID:        id,
		Type:      typ,
		From:      models.ActivityFrom{ID: "bot-1", Role: models.RoleBot},
		ReplyToID: replyTo,
		Text:      text,
	}
}

func newChatFixture(bot *fakeBot) (ChatService, *memoryrepo.ConversationRepository, *fakeSleeper) {
	store := memoryrepo.NewConversationRepository()
	sleeper := &fakeSleeper{}
	convs := NewConversationService(bot, store, testLogger())
	return NewChatService(bot, convs, sleeper, testLogger()), store, sleeper
}

func TestChatSendReturnsCorrelatedReply(t *testing.T) {
	bot := &fakeBot{
		lists: [][]models.Activity{{
			userEcho("A1"),
			botReply("B1", "A1", models.ActivityTypeMessage, "Hi there"),
		}},
	}
	chat, store, sleeper := newChatFixture(bot)

	reply, err := chat.Send(context.Background(), "bs-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "Hi there", reply)
	require.Empty(t, sleeper.durations())

	sess, err := store.Get(context.Background(), "bs-1")
	require.NoError(t, err)
	require.Equal(t, 2, sess.Watermark)
}

func TestChatSendPrefersTextualMessageReply(t *testing.T) {
	bot := &fakeBot{
		lists: [][]models.Activity{{
			userEcho("A1"),
			botReply("B1", "A1", "event", ""),
			botReply("B2", "A1", "event", "plan status"),
			botReply("B3", "A1", models.ActivityTypeMessage, "the real answer"),
		}},
	}
	chat, _, _ := newChatFixture(bot)

	reply, err := chat.Send(context.Background(), "bs-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "the real answer", reply)
}

func TestChatSendFallsBackToTextualNonMessageReply(t *testing.T) {
	bot := &fakeBot{
		lists: [][]models.Activity{{
			userEcho("A1"),
			botReply("B1", "A1", "event", "event text"),
		}},
	}
	chat, _, _ := newChatFixture(bot)

	reply, err := chat.Send(context.Background(), "bs-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "event text", reply)
}

func TestChatSendSubstitutesPlaceholderForEmptyReply(t *testing.T) {
	bot := &fakeBot{
		lists: [][]models.Activity{{
			userEcho("A1"),
			botReply("B1", "A1", models.ActivityTypeMessage, "   "),
		}},
	}
	chat, _, _ := newChatFixture(bot)

	reply, err := chat.Send(context.Background(), "bs-1", "hello")
	require.NoError(t, err)
	require.Equal(t, EmptyReplyText, reply)
}

func TestChatSendEventOnlyRepliesExhaustPolling(t *testing.T) {
	bot := &fakeBot{
		lists: [][]models.Activity{{
			userEcho("A1"),
			botReply("B1", "A1", "event", ""),
		}},
	}
	chat, _, sleeper := newChatFixture(bot)

	_, err := chat.Send(context.Background(), "bs-1", "hello")
	require.Error(t, err)
	require.True(t, utils.IsCode(err, utils.CodeNoReply))

	// one in-attempt refetch wait, then four waits between the five attempts
	require.Equal(t, []time.Duration{
		5 * time.Second,
		2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second,
	}, sleeper.durations())
}

func TestChatSendWaitsForPostedEchoBeforeMatching(t *testing.T) {
	reply := botReply("B1", "A1", models.ActivityTypeMessage, "late echo")
	bot := &fakeBot{
		lists: [][]models.Activity{
			{reply}, // echo not visible yet, the reply alone must not match
			{userEcho("A1"), reply},
		},
	}
	chat, store, sleeper := newChatFixture(bot)

	got, err := chat.Send(context.Background(), "bs-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "late echo", got)
	require.Equal(t, []time.Duration{5 * time.Second}, sleeper.durations())

	sess, err := store.Get(context.Background(), "bs-1")
	require.NoError(t, err)
	require.Equal(t, 2, sess.Watermark)
}

func TestChatSendRecreatesSessionAfterPostFailure(t *testing.T) {
	bot := &fakeBot{
		postErrs: []error{errors.New("token expired")},
		lists: [][]models.Activity{{
			userEcho("A1"),
			botReply("B1", "A1", models.ActivityTypeMessage, "recovered"),
		}},
	}
	chat, store, _ := newChatFixture(bot)

	reply, err := chat.Send(context.Background(), "bs-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "recovered", reply)
	require.Equal(t, 2, bot.postCalls)
	require.Equal(t, 2, bot.convCount)

	sess, err := store.Get(context.Background(), "bs-1")
	require.NoError(t, err)
	require.Equal(t, "conv-2", sess.ConversationID)
}

func TestChatSendFailsAfterSecondPostFailure(t *testing.T) {
	bot := &fakeBot{
		postErrs: []error{errors.New("rejected"), errors.New("rejected again")},
	}
	chat, _, _ := newChatFixture(bot)

	_, err := chat.Send(context.Background(), "bs-1", "hello")
	require.Error(t, err)
	require.True(t, utils.IsCode(err, utils.CodeSendFailed))
	require.Equal(t, 2, bot.postCalls)
	require.Equal(t, 2, bot.convCount)
}

func TestChatSendWatermarkIsNonDecreasing(t *testing.T) {
	bot := &fakeBot{
		postIDs: []string{"A1", "A2"},
		lists: [][]models.Activity{
			{
				userEcho("A1"),
				botReply("B1", "A1", models.ActivityTypeMessage, "first"),
			},
			{
				userEcho("A1"),
				botReply("B1", "A1", models.ActivityTypeMessage, "first"),
				userEcho("A2"),
				botReply("B2", "A2", models.ActivityTypeMessage, "second"),
			},
		},
	}
	chat, store, _ := newChatFixture(bot)
	ctx := context.Background()

	_, err := chat.Send(ctx, "bs-1", "one")
	require.NoError(t, err)
	sess, err := store.Get(ctx, "bs-1")
	require.NoError(t, err)
	require.Equal(t, 2, sess.Watermark)

	_, err = chat.Send(ctx, "bs-1", "two")
	require.NoError(t, err)
	sess, err = store.Get(ctx, "bs-1")
	require.NoError(t, err)
	require.Equal(t, 4, sess.Watermark)
}

func TestChatSendRejectsEmptyMessage(t *testing.T) {
	chat, _, _ := newChatFixture(&fakeBot{})

	_, err := chat.Send(context.Background(), "bs-1", "   ")
	require.Error(t, err)
	require.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestChatSendToleratesTransientListFailures(t *testing.T) {
	bot := &fakeBot{
		listErrs: []error{errors.New("flaky fetch")},
		lists: [][]models.Activity{
			nil, // consumed by the failing call
			{
				userEcho("A1"),
				botReply("B1", "A1", models.ActivityTypeMessage, "eventually"),
			},
		},
	}
	chat, _, sleeper := newChatFixture(bot)

	reply, err := chat.Send(context.Background(), "bs-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "eventually", reply)
	// the failed attempt burns one inter-attempt wait
	require.Equal(t, []time.Duration{2 * time.Second}, sleeper.durations())
}
