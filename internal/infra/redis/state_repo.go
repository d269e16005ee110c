package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
)

var _ repository.ConversationStateRepository = (*StateRepo)(nil)

// StateRepo manages per-user conversational state in Redis. Set performs a
// read-merge-write under a short per-phone lock; concurrent writers for
// different phones never contend on the same key.
type StateRepo struct {
	client *Client
	locker Locker
	ttl    time.Duration
}

func NewStateRepo(client *Client, locker Locker, ttl time.Duration) *StateRepo {
	return &StateRepo{client: client, locker: locker, ttl: ttl}
}

func (s *StateRepo) stateKey(phone string) string {
	return fmt.Sprintf("conv_state:%s", phone)
}

func (s *StateRepo) lockKey(phone string) string {
	return fmt.Sprintf("conv_state_lock:%s", phone)
}

func (s *StateRepo) Get(ctx context.Context, phone string) (*model.ConversationState, error) {
	data, err := s.client.Get(ctx, s.stateKey(phone))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get conversation state: %w", err)
	}
	var state model.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	return &state, nil
}

func (s *StateRepo) Set(ctx context.Context, phone string, patch model.StatePatch) (*model.ConversationState, error) {
	token, err := s.locker.TryLock(ctx, s.lockKey(phone), 5*time.Second)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.locker.Unlock(ctx, s.lockKey(phone), token) }()

	state, err := s.Get(ctx, phone)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		state = &model.ConversationState{Step: model.StepMenu}
	}
	patch.Apply(state, time.Now())

	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, s.stateKey(phone), data, s.ttl); err != nil {
		return nil, fmt.Errorf("save conversation state: %w", err)
	}
	return state, nil
}

func (s *StateRepo) Clear(ctx context.Context, phone string) error {
	return s.client.Del(ctx, s.stateKey(phone))
}
