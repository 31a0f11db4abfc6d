package storage

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/jevenson76/atl-dashboards/domain"
)

const (
	queuePerCPU             = 10
	defaultQueueConcurrency = 8
	maxQueueConcurrency     = 64
)

type queue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error)
}

type table interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, o *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
}

// Storage reads board settings from Azure Tables and hands applied edits to
// the reconciliation queue.
type Storage struct {
	settingsTable    table
	editQueue        queue
	queueConcurrency int
}

// New creates a Storage instance from the given connection string.
func New(connStr, settingsTable, editsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, editsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		settingsTable:    svc.NewClient(settingsTable),
		editQueue:        eq,
		queueConcurrency: queueConcurrencyForCPU(runtime.NumCPU()),
	}, nil
}

func queueConcurrencyForCPU(cpu int) int {
	if cpu < 1 {
		return defaultQueueConcurrency
	}
	n := cpu * queuePerCPU
	if n > maxQueueConcurrency {
		return maxQueueConcurrency
	}
	return n
}

type settingsEntity struct {
	aztables.Entity
	OwnerName     string `json:"OwnerName"`
	DefaultFilter string `json:"DefaultFilter"`
	NoteLimit     int    `json:"NoteLimit"`
}

func decodeSettingsEntity(data []byte) (domain.Settings, error) {
	var ent settingsEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Settings{}, err
	}
	s := domain.Settings{OwnerName: ent.OwnerName, NoteLimit: ent.NoteLimit}
	if f, ok := domain.ParseFilter(ent.DefaultFilter); ok {
		s.DefaultFilter = f
	}
	return s, nil
}

// FetchSettings reads the user's board settings. A user without a settings
// row gets zero settings.
func (s *Storage) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	ent, err := s.settingsTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return domain.Settings{}, nil
		}
		return domain.Settings{}, err
	}
	return decodeSettingsEntity(ent.Value)
}

// EnqueueEdits sends each edit as its own queue message.
func (s *Storage) EnqueueEdits(ctx context.Context, userID string, edits []domain.Edit) error {
	g, ctx := errgroup.WithContext(ctx)
	limit := s.queueConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, edit := range edits {
		data, err := sonic.Marshal(domain.EditEnvelope{UserID: userID, Edit: edit})
		if err != nil {
			return err
		}
		g.Go(func() error {
			_, err := s.editQueue.EnqueueMessage(ctx, string(data), nil)
			return err
		})
	}
	return g.Wait()
}

// Ping checks that the edits queue is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.editQueue.GetProperties(ctx, nil)
	return err
}
