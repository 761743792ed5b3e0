package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPublishWithRetryEventuallySucceeds(t *testing.T) {
	p := new(MockPublisher)
	p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats: timeout")).Twice()
	p.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	ev := Event{Subject: SubjectDocumentProcessed, DocumentID: uuid.New()}
	err := PublishWithRetry(context.Background(), p, ev, 3, time.Millisecond)
	require.NoError(t, err)
	p.AssertNumberOfCalls(t, "Publish", 3)
}

func TestPublishWithRetryKeepsEventID(t *testing.T) {
	p := new(MockPublisher)
	var ids []uuid.UUID
	p.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { ids = append(ids, args.Get(1).(Event).ID) }).
		Return(errors.New("down"))

	err := PublishWithRetry(context.Background(), p, Event{Subject: SubjectDocumentDeleted}, 2, time.Millisecond)
	require.EqualError(t, err, "down")
	require.Len(t, ids, 2)
	assert.NotEqual(t, uuid.Nil, ids[0])
	assert.Equal(t, ids[0], ids[1])
}

func TestPublishWithRetryHonorsContext(t *testing.T) {
	p := new(MockPublisher)
	p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := PublishWithRetry(ctx, p, Event{Subject: SubjectDocumentDeleted}, 5, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	p.AssertNumberOfCalls(t, "Publish", 1)
}

func TestEncode(t *testing.T) {
	docID := uuid.New()
	body, err := encode(Event{Subject: SubjectDocumentProcessed, DocumentID: docID, IndexEntries: 3})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "documents.processed", got["subject"])
	assert.Equal(t, docID.String(), got["documentId"])
	assert.EqualValues(t, 3, got["indexEntries"])
	assert.NotEmpty(t, got["id"])
	assert.NotEmpty(t, got["occurredAt"])

	_, err = encode(Event{})
	assert.ErrorIs(t, err, errSubjectRequired)
}

func TestNoop(t *testing.T) {
	var p Publisher = NewNoop()
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
