package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"github.com/yush1006/todo/domain"
)

// tableClient is the subset of *aztables.Client used by TableStore.
type tableClient interface {
	NewListEntitiesPager(opts *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
	GetEntity(ctx context.Context, partitionKey, rowKey string, opts *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, opts *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, opts *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, opts *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	SubmitTransaction(ctx context.Context, actions []aztables.TransactionAction, opts *aztables.SubmitTransactionOptions) (aztables.TransactionResponse, error)
}

// TableStore keeps tasks in an Azure Storage table, one partition per owner.
type TableStore struct {
	table tableClient
	now   func() time.Time
}

// TableClientOptions are the retry settings used for every table client.
func TableClientOptions() *aztables.ClientOptions {
	return &aztables.ClientOptions{
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
}

// NewTableStore creates a TableStore from the given connection string.
func NewTableStore(connStr, tasksTable string) (*TableStore, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, TableClientOptions())
	if err != nil {
		return nil, err
	}
	return &TableStore{table: svc.NewClient(tasksTable), now: time.Now}, nil
}

func partitionFilter(ownerID string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(ownerID, "'", "''") + "'"
}

// FetchTasks retrieves all tasks for the provided owner.
func (s *TableStore) FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	filter := partitionFilter(ownerID)
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toDomain())
		}
	}
	domain.SortTasks(tasks)
	return tasks, nil
}

func (s *TableStore) CreateTask(ctx context.Context, task domain.NewTask) (domain.Task, error) {
	if err := validateNewTask(task); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:        uuid.NewString(),
		OwnerID:   task.OwnerID,
		Text:      task.Text,
		CreatedAt: s.now().UTC(),
		Order:     task.Order,
	}
	payload, err := json.Marshal(taskEntityFrom(t))
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (s *TableStore) getTask(ctx context.Context, ownerID, id string) (domain.Task, error) {
	resp, err := s.table.GetEntity(ctx, ownerID, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Task{}, err
	}
	return ent.toDomain(), nil
}

// UpdateTask reads the row, applies the patch and replaces the row so that a
// cleared completion timestamp is removed from storage.
func (s *TableStore) UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error) {
	if err := validatePatch(patch); err != nil {
		return domain.Task{}, err
	}
	t, err := s.getTask(ctx, ownerID, id)
	if err != nil {
		return domain.Task{}, err
	}
	patch.Apply(&t, s.now())
	payload, err := json.Marshal(taskEntityFrom(t))
	if err != nil {
		return domain.Task{}, err
	}
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	return t, nil
}

func (s *TableStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	et := azcore.ETagAny
	_, err := s.table.DeleteEntity(ctx, ownerID, id, &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// BatchUpdate submits every update as one entity group transaction. Order
// changes are merged in place; other patches are read, applied and replaced.
func (s *TableStore) BatchUpdate(ctx context.Context, ownerID string, updates []domain.TaskUpdate) error {
	if err := validateBatch(updates); err != nil {
		return err
	}
	now := s.now()
	actions := make([]aztables.TransactionAction, 0, len(updates))
	for _, u := range updates {
		if orderOnly(u.Patch) {
			payload, err := json.Marshal(orderUpdate{
				Entity:    Entity{PartitionKey: ownerID, RowKey: u.ID},
				Order:     *u.Patch.Order,
				OrderType: EdmInt64,
			})
			if err != nil {
				return err
			}
			et := azcore.ETagAny
			actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeUpdateMerge, Entity: payload, IfMatch: &et})
			continue
		}
		t, err := s.getTask(ctx, ownerID, u.ID)
		if err != nil {
			return err
		}
		u.Patch.Apply(&t, now)
		payload, err := json.Marshal(taskEntityFrom(t))
		if err != nil {
			return err
		}
		et := azcore.ETagAny
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeUpdateReplace, Entity: payload, IfMatch: &et})
	}
	if _, err := s.table.SubmitTransaction(ctx, actions, nil); err != nil {
		if isNotFound(err) {
			return ErrTaskNotFound
		}
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound || respErr.ErrorCode == string(aztables.ResourceNotFound)
	}
	return false
}

// IsAlreadyExists reports whether err is the conflict returned when a table
// or queue being created already exists.
func IsAlreadyExists(err error) bool {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	return respErr.ErrorCode == string(aztables.TableAlreadyExists) || respErr.ErrorCode == "QueueAlreadyExists"
}
