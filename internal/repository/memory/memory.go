// Package memory はリポジトリのインメモリ実装を提供する。
// 単一プロセスでの動作確認やテストで使う。データはプロセス終了とともに失われる。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/repository"
)

// Store は全リポジトリのデータを1つのロックで保持する。
type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	nextID        int64
	users         map[int64]*model.User
	channels      map[int64]*model.Channel
	writers       map[[2]int64]bool // {userID, channelID}
	sales         map[int64]*model.Sale
	reminders     map[int64]*model.PendingReminder
	conversations map[int64]*model.ConversationRecord
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[int64]*model.User),
		channels:      make(map[int64]*model.Channel),
		writers:       make(map[[2]int64]bool),
		sales:         make(map[int64]*model.Sale),
		reminders:     make(map[int64]*model.PendingReminder),
		conversations: make(map[int64]*model.ConversationRecord),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Users はユーザーリポジトリを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s} }

// Channels はチャンネルリポジトリを返す。
func (s *Store) Channels() *ChannelRepo { return &ChannelRepo{s} }

// Sales は売上リポジトリを返す。
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s} }

// Reminders はリマインダーリポジトリを返す。
func (s *Store) Reminders() *ReminderRepo { return &ReminderRepo{s} }

// Conversations は対話セッションリポジトリを返す。
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s} }

// --- users ---

// UserRepo はUserRepositoryのインメモリ実装。
type UserRepo struct{ s *Store }

func (r *UserRepo) Upsert(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if cur, ok := r.s.users[user.ID]; ok {
		if user.AccessHash == 0 {
			user.AccessHash = cur.AccessHash
		}
		user.RegisteredAt = cur.RegisteredAt
	} else {
		user.RegisteredAt = now
	}
	user.BotBlocked = false
	user.LastActivity = now
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) SetBotBlocked(ctx context.Context, id int64, blocked bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		u.BotBlocked = blocked
	}
	return nil
}

// --- channels ---

// ChannelRepo はChannelRepositoryのインメモリ実装。
type ChannelRepo struct{ s *Store }

func (r *ChannelRepo) find(pred func(*model.Channel) bool) *model.Channel {
	for _, ch := range r.s.channels {
		if pred(ch) {
			cp := *ch
			return &cp
		}
	}
	return nil
}

func (r *ChannelRepo) FindByID(ctx context.Context, id int64) (*model.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(ch *model.Channel) bool { return ch.ID == id }), nil
}

func (r *ChannelRepo) FindByTitle(ctx context.Context, title string) (*model.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(ch *model.Channel) bool { return ch.Title == title }), nil
}

func (r *ChannelRepo) FindByInviteCode(ctx context.Context, code string) (*model.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(ch *model.Channel) bool { return ch.InviteCode == code }), nil
}

func (r *ChannelRepo) Create(ctx context.Context, ch *model.Channel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.find(func(c *model.Channel) bool { return c.Title == ch.Title }) != nil {
		return repository.ErrDuplicateTitle
	}
	if r.find(func(c *model.Channel) bool { return c.InviteCode == ch.InviteCode }) != nil {
		return repository.ErrDuplicateInviteCode
	}
	ch.ID = r.s.id()
	ch.CreatedAt = r.s.now()
	cp := *ch
	r.s.channels[ch.ID] = &cp
	return nil
}

func (r *ChannelRepo) ReplaceInviteCode(ctx context.Context, id int64, oldCode, newCode string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ch, ok := r.s.channels[id]
	if !ok || ch.InviteCode != oldCode {
		return false, nil
	}
	if r.find(func(c *model.Channel) bool { return c.InviteCode == newCode }) != nil {
		return false, repository.ErrDuplicateInviteCode
	}
	ch.InviteCode = newCode
	return true, nil
}

func (r *ChannelRepo) SetMirrorID(ctx context.Context, id int64, mirrorID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ch, ok := r.s.channels[id]; ok {
		ch.MirrorID = mirrorID
	}
	return nil
}

func (r *ChannelRepo) ListForUser(ctx context.Context, userID int64) ([]*model.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Channel
	for _, ch := range r.s.channels {
		if ch.CreatorID == userID || r.s.writers[[2]int64{userID, ch.ID}] {
			cp := *ch
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ChannelRepo) AddWriter(ctx context.Context, userID, channelID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]int64{userID, channelID}
	if r.s.writers[key] {
		return false, nil
	}
	r.s.writers[key] = true
	return true, nil
}

func (r *ChannelRepo) IsWriter(ctx context.Context, userID, channelID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.writers[[2]int64{userID, channelID}], nil
}

// --- sales ---

// SaleRepo はSaleRepositoryのインメモリ実装。
type SaleRepo struct{ s *Store }

func (r *SaleRepo) Create(ctx context.Context, sale *model.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale.ID = r.s.id()
	sale.CreatedAt = r.s.now()
	cp := *sale
	r.s.sales[sale.ID] = &cp
	return nil
}

func (r *SaleRepo) FindByID(ctx context.Context, id int64) (*model.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sales[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *SaleRepo) UpdateField(ctx context.Context, sale *model.Sale, field model.SaleField) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.sales[sale.ID]
	if !ok {
		return false, nil
	}
	switch field {
	case model.FieldBuyer:
		cur.Buyer = sale.Buyer
	case model.FieldCost:
		cur.Cost = sale.Cost
	case model.FieldPercent:
		cur.ManagerPercent = sale.ManagerPercent
	case model.FieldFormat:
		cur.Format = sale.Format
	case model.FieldStatus:
		cur.Status = sale.Status
	}
	return true, nil
}

func (r *SaleRepo) Delete(ctx context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sales[id]; !ok {
		return false, nil
	}
	delete(r.s.sales, id)
	for rid, rem := range r.s.reminders {
		if rem.SaleID == id {
			delete(r.s.reminders, rid)
		}
	}
	return true, nil
}

func (r *SaleRepo) CountByChannel(ctx context.Context, channelID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, s := range r.s.sales {
		if s.ChannelID == channelID {
			n++
		}
	}
	return n, nil
}

func (r *SaleRepo) Position(ctx context.Context, channelID, saleID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, s := range r.s.sales {
		if s.ChannelID == channelID && s.ID <= saleID {
			n++
		}
	}
	return n, nil
}

func (r *SaleRepo) ListPublishedBetween(ctx context.Context, channelID int64, from, to time.Time) ([]*model.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Sale
	for _, s := range r.s.sales {
		if s.ChannelID == channelID && !s.PublishedAt.Before(from) && s.PublishedAt.Before(to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SaleRepo) TotalsForUser(ctx context.Context, userID int64) ([]*model.ChannelTotals, error) {
	channels, _ := r.s.Channels().ListForUser(ctx, userID)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.ChannelTotals, 0, len(channels))
	for _, ch := range channels {
		t := &model.ChannelTotals{ChannelID: ch.ID, Title: ch.Title}
		for _, s := range r.s.sales {
			if s.ChannelID != ch.ID {
				continue
			}
			t.Revenue += s.Cost
			t.ManagerShare += s.ManagerShare()
			t.SalesCount++
		}
		out = append(out, t)
	}
	return out, nil
}

// --- reminders ---

// ReminderRepo はReminderRepositoryのインメモリ実装。
type ReminderRepo struct{ s *Store }

func (r *ReminderRepo) Create(ctx context.Context, reminder *model.PendingReminder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.reminders {
		if cur.SaleID == reminder.SaleID {
			cur.DueAt = reminder.DueAt
			reminder.ID = cur.ID
			reminder.CreatedAt = cur.CreatedAt
			return nil
		}
	}
	reminder.ID = r.s.id()
	reminder.CreatedAt = r.s.now()
	cp := *reminder
	r.s.reminders[reminder.ID] = &cp
	return nil
}

func (r *ReminderRepo) ListDueBetween(ctx context.Context, from, to time.Time) ([]*model.DueReminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.DueReminder
	for _, rem := range r.s.reminders {
		if rem.DueAt.Before(from) || rem.DueAt.After(to) {
			continue
		}
		sale, ok := r.s.sales[rem.SaleID]
		if !ok {
			continue
		}
		out = append(out, &model.DueReminder{PendingReminder: *rem, Sale: *sale})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ReminderRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.s.reminders[id]; ok {
			delete(r.s.reminders, id)
			n++
		}
	}
	return n, nil
}

func (r *ReminderRepo) FindBySaleID(ctx context.Context, saleID int64) (*model.PendingReminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rem := range r.s.reminders {
		if rem.SaleID == saleID {
			cp := *rem
			return &cp, nil
		}
	}
	return nil, nil
}

// --- conversations ---

// ConversationRepo はConversationRepositoryのインメモリ実装。
type ConversationRepo struct{ s *Store }

func (r *ConversationRepo) Save(ctx context.Context, rec *model.ConversationRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *rec
	cp.Draft = append([]byte(nil), rec.Draft...)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = r.s.now()
	}
	r.s.conversations[rec.UserID] = &cp
	return nil
}

func (r *ConversationRepo) Find(ctx context.Context, userID int64) (*model.ConversationRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.conversations[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.Draft = append([]byte(nil), rec.Draft...)
	return &cp, nil
}

func (r *ConversationRepo) Delete(ctx context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.conversations, userID)
	return nil
}

func (r *ConversationRepo) DeleteUpdatedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, rec := range r.s.conversations {
		if rec.UpdatedAt.Before(before) {
			delete(r.s.conversations, id)
			n++
		}
	}
	return n, nil
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.ChannelRepository      = (*ChannelRepo)(nil)
	_ repository.SaleRepository         = (*SaleRepo)(nil)
	_ repository.ReminderRepository     = (*ReminderRepo)(nil)
	_ repository.ConversationRepository = (*ConversationRepo)(nil)
)
