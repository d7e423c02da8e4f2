package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aroosi/aroosi-api/internal/cache"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

// fakeStore is an in-memory stand-in for *repository.Repository.
type fakeStore struct {
	mu sync.Mutex

	users         map[string]*model.User
	refreshTokens map[string]*model.RefreshToken
	profiles      map[string]*model.Profile
	counters      map[string]int
	usageEvents   []model.UsageEvent
	blocks        map[[2]string]time.Time
	interests     map[string]*model.Interest
	matches       map[string]*model.Match
	shortlists    map[string][]*model.ShortlistEntry
	messages      []*model.Message
	views         []*model.ProfileView
	actions       []*model.QuickPickAction
	reports       map[string]*model.Report
	devices       map[string]*model.DeviceToken
	notifications []*model.Notification

	lastPickFilter repository.QuickPickFilter
	searchErr      error

	seq int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]*model.User{},
		refreshTokens: map[string]*model.RefreshToken{},
		profiles:      map[string]*model.Profile{},
		counters:      map[string]int{},
		blocks:        map[[2]string]time.Time{},
		interests:     map[string]*model.Interest{},
		matches:       map[string]*model.Match{},
		shortlists:    map[string][]*model.ShortlistEntry{},
		reports:       map[string]*model.Report{},
		devices:       map[string]*model.DeviceToken{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return prefix + time.Unix(int64(f.seq), 0).UTC().Format("150405")
}

// users

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email && u.DeletedAt == nil {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeStore) DeleteAccount(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrUserNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	delete(f.profiles, id)
	var peers []string
	for _, m := range f.matches {
		if m.Status == model.MatchActive && m.Involves(id) {
			m.Status = model.MatchUnmatched
			peers = append(peers, m.Other(id))
		}
	}
	for _, t := range f.refreshTokens {
		if t.UserID == id && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return peers, nil
}

func (f *fakeStore) CreateRefreshToken(_ context.Context, token *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *token
	f.refreshTokens[token.ID] = &cp
	return nil
}

func (f *fakeStore) GetRefreshTokensByPrefix(_ context.Context, prefix string) ([]*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.RefreshToken
	for _, t := range f.refreshTokens {
		if t.Prefix == prefix {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, oldID string, next *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.refreshTokens[oldID]
	if !ok || old.RevokedAt != nil {
		return repository.ErrRefreshTokenNotFound
	}
	now := time.Now()
	old.RevokedAt = &now
	cp := *next
	f.refreshTokens[next.ID] = &cp
	return nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.refreshTokens[id]; ok && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
	}
	return nil
}

// usage

func counterKey(userID string, feature model.Feature, periodStart time.Time) string {
	return userID + "|" + string(feature) + "|" + periodStart.UTC().Format(time.RFC3339)
}

func (f *fakeStore) consumeLocked(userID string, quota repository.UsageQuota) (int, error) {
	if quota.Limit == 0 {
		return 0, repository.ErrQuotaReached
	}
	key := counterKey(userID, quota.Feature, quota.PeriodStart)
	if quota.Limit > 0 && f.counters[key] >= quota.Limit {
		return 0, repository.ErrQuotaReached
	}
	f.counters[key]++
	f.usageEvents = append(f.usageEvents, model.UsageEvent{UserID: userID, Feature: quota.Feature, CreatedAt: quota.Now})
	return f.counters[key], nil
}

func (f *fakeStore) ConsumeUsage(_ context.Context, userID string, quota repository.UsageQuota) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumeLocked(userID, quota)
}

func (f *fakeStore) GetUsageCount(_ context.Context, userID string, feature model.Feature, periodStart time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[counterKey(userID, feature, periodStart)], nil
}

func (f *fakeStore) GetUsageHistory(_ context.Context, userID string, since time.Time) (map[string]map[model.Feature]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]map[model.Feature]int{}
	for _, e := range f.usageEvents {
		if e.UserID != userID || e.CreatedAt.Before(since) {
			continue
		}
		day := e.CreatedAt.UTC().Format(time.DateOnly)
		if out[day] == nil {
			out[day] = map[model.Feature]int{}
		}
		out[day][e.Feature]++
	}
	return out, nil
}

// profiles

func (f *fakeStore) CreateProfile(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[p.UserID]; ok {
		return repository.ErrProfileExists
	}
	cp := *p
	f.profiles[p.UserID] = &cp
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetProfiles(_ context.Context, userIDs []string) (map[string]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]*model.Profile{}
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[p.UserID]; !ok {
		return repository.ErrProfileNotFound
	}
	cp := *p
	f.profiles[p.UserID] = &cp
	return nil
}

func (f *fakeStore) BoostProfile(_ context.Context, userID string, until time.Time, quota repository.UsageQuota) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return 0, repository.ErrProfileNotFound
	}
	if p.IsBoosted(quota.Now) {
		return 0, repository.ErrAlreadyBoosted
	}
	used, err := f.consumeLocked(userID, quota)
	if err != nil {
		return 0, err
	}
	p.BoostedUntil = &until
	return used, nil
}

func (f *fakeStore) blockedLocked(a, b string) bool {
	_, ab := f.blocks[[2]string{a, b}]
	_, ba := f.blocks[[2]string{b, a}]
	return ab || ba
}

func (f *fakeStore) VisibleProfileIDs(_ context.Context, viewerID string, ids []string, viewerIsFree bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range ids {
		u, ok := f.users[id]
		p, hasProfile := f.profiles[id]
		switch {
		case !ok || !hasProfile || id == viewerID:
		case !u.IsActive() || !p.IsComplete():
		case viewerIsFree && p.HideFromFreeUsers:
		case f.blockedLocked(viewerID, id):
		default:
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) IsBlockedEither(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockedLocked(a, b), nil
}

func (f *fakeStore) SearchProfiles(_ context.Context, filter repository.ProfileFilter, cursor string, limit int) ([]*model.Profile, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cursor == "bogus" {
		return nil, "", repository.ErrInvalidCursor
	}
	if f.searchErr != nil {
		return nil, "", f.searchErr
	}
	var out []*model.Profile
	for _, p := range f.profiles {
		if p.UserID == filter.ViewerID || !p.IsComplete() || f.blockedLocked(filter.ViewerID, p.UserID) {
			continue
		}
		if filter.Gender != "" && p.Gender != filter.Gender {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		bi, bj := out[i].IsBoosted(filter.Now), out[j].IsBoosted(filter.Now)
		if bi != bj {
			return bi
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		return out[:limit], "next", nil
	}
	return out, "", nil
}

func (f *fakeStore) ListProfileViewers(_ context.Context, viewedID string, limit int) ([]*model.ProfileView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.ProfileView
	for _, v := range f.views {
		if v.ViewedID == viewedID {
			out = append(out, v)
		}
	}
	return out, nil
}

// interests and matches

func (f *fakeStore) createMatchLocked(a, b string, now time.Time) *model.Match {
	lo, hi := model.OrderedPair(a, b)
	for _, m := range f.matches {
		if m.User1ID == lo && m.User2ID == hi && m.Status == model.MatchActive {
			return m
		}
	}
	m := &model.Match{
		ID:             f.nextID("m"),
		User1ID:        lo,
		User2ID:        hi,
		ConversationID: model.ConversationID(a, b),
		Status:         model.MatchActive,
		CreatedAt:      now,
	}
	f.matches[m.ID] = m
	return m
}

func (f *fakeStore) SendInterest(_ context.Context, in *model.Interest, quota repository.UsageQuota) (*repository.SendInterestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.interests {
		if existing.FromUserID == in.FromUserID && existing.ToUserID == in.ToUserID &&
			(existing.Status == model.InterestPending || existing.Status == model.InterestAccepted) {
			return nil, repository.ErrInterestExists
		}
	}
	for _, reverse := range f.interests {
		if reverse.FromUserID == in.ToUserID && reverse.ToUserID == in.FromUserID && reverse.Status == model.InterestPending {
			reverse.Status = model.InterestAccepted
			in.Status = model.InterestAccepted
			cp := *in
			f.interests[in.ID] = &cp
			m := f.createMatchLocked(in.FromUserID, in.ToUserID, in.CreatedAt)
			return &repository.SendInterestResult{Interest: in, Match: m}, nil
		}
	}
	used, err := f.consumeLocked(in.FromUserID, quota)
	if err != nil {
		return nil, err
	}
	in.Status = model.InterestPending
	cp := *in
	f.interests[in.ID] = &cp
	return &repository.SendInterestResult{Interest: in, QuotaUsed: used}, nil
}

func (f *fakeStore) RespondInterest(_ context.Context, id, recipientID string, status model.InterestStatus, now time.Time) (*model.Interest, *model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.interests[id]
	if !ok {
		return nil, nil, repository.ErrInterestNotFound
	}
	if in.ToUserID != recipientID {
		return nil, nil, repository.ErrNotInterestParty
	}
	if in.Status != model.InterestPending {
		return nil, nil, repository.ErrInterestNotPending
	}
	in.Status = status
	in.UpdatedAt = now
	var m *model.Match
	if status == model.InterestAccepted {
		m = f.createMatchLocked(in.FromUserID, in.ToUserID, now)
	}
	cp := *in
	return &cp, m, nil
}

func (f *fakeStore) WithdrawInterest(_ context.Context, id, senderID string, now time.Time) (*model.Interest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.interests[id]
	if !ok {
		return nil, repository.ErrInterestNotFound
	}
	if in.FromUserID != senderID {
		return nil, repository.ErrNotInterestParty
	}
	if in.Status != model.InterestPending {
		return nil, repository.ErrInterestNotPending
	}
	in.Status = model.InterestWithdrawn
	in.UpdatedAt = now
	cp := *in
	return &cp, nil
}

func (f *fakeStore) listInterests(match func(*model.Interest) bool) []*model.Interest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Interest
	for _, in := range f.interests {
		if match(in) {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeStore) ListSentInterests(_ context.Context, userID string, _ int) ([]*model.Interest, error) {
	return f.listInterests(func(in *model.Interest) bool {
		return in.FromUserID == userID && in.Status != model.InterestWithdrawn
	}), nil
}

func (f *fakeStore) ListReceivedInterests(_ context.Context, userID string, status model.InterestStatus, _ int) ([]*model.Interest, error) {
	return f.listInterests(func(in *model.Interest) bool {
		if in.ToUserID != userID {
			return false
		}
		if status == "" {
			return in.Status != model.InterestWithdrawn
		}
		return in.Status == status
	}), nil
}

func (f *fakeStore) ListMatches(_ context.Context, userID string) ([]*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Match
	for _, m := range f.matches {
		if m.Status == model.MatchActive && m.Involves(userID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) Unmatch(_ context.Context, matchID, userID string) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[matchID]
	if !ok || !m.Involves(userID) || m.Status != model.MatchActive {
		return nil, repository.ErrMatchNotFound
	}
	m.Status = model.MatchUnmatched
	cp := *m
	return &cp, nil
}

// shortlist

func (f *fakeStore) AddShortlist(_ context.Context, entry *model.ShortlistEntry, capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.shortlists[entry.UserID]
	if capacity >= 0 && len(list) >= capacity {
		return repository.ErrShortlistFull
	}
	for _, e := range list {
		if e.ShortlistedUserID == entry.ShortlistedUserID {
			return repository.ErrShortlistExists
		}
	}
	cp := *entry
	f.shortlists[entry.UserID] = append(list, &cp)
	return nil
}

func (f *fakeStore) RemoveShortlist(_ context.Context, userID, shortlistedUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.shortlists[userID]
	for i, e := range list {
		if e.ShortlistedUserID == shortlistedUserID {
			f.shortlists[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return repository.ErrShortlistNotFound
}

func (f *fakeStore) ListShortlist(_ context.Context, userID string) ([]*model.ShortlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.ShortlistEntry
	for _, e := range f.shortlists[userID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// messages

func (f *fakeStore) GetActiveMatchByConversation(_ context.Context, conversationID string) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if m.ConversationID == conversationID && m.Status == model.MatchActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrMatchNotFound
}

func (f *fakeStore) SendMessage(_ context.Context, msg *model.Message, quota repository.UsageQuota) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := false
	for _, m := range f.matches {
		if m.ConversationID == msg.ConversationID && m.Status == model.MatchActive {
			active = true
		}
	}
	if !active {
		return 0, repository.ErrMatchNotFound
	}
	used, err := f.consumeLocked(msg.FromUserID, quota)
	if err != nil {
		return 0, err
	}
	cp := *msg
	f.messages = append(f.messages, &cp)
	return used, nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID, _ string, limit int) ([]*model.Message, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Message
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].ConversationID == conversationID {
			out = append(out, f.messages[i])
		}
	}
	if len(out) > limit {
		return out[:limit], "more", nil
	}
	return out, "", nil
}

func (f *fakeStore) MarkConversationRead(_ context.Context, conversationID, readerID string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.ToUserID == readerID && m.ReadAt == nil {
			m.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListConversations(_ context.Context, userID string) ([]*repository.ConversationRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.ConversationRow
	for _, m := range f.matches {
		if m.Status != model.MatchActive || !m.Involves(userID) {
			continue
		}
		row := &repository.ConversationRow{Match: m}
		for _, msg := range f.messages {
			if msg.ConversationID != m.ConversationID {
				continue
			}
			row.LastMessage = msg
			if msg.ToUserID == userID && msg.ReadAt == nil {
				row.UnreadCount++
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// quick picks

func (f *fakeStore) ListQuickPickCandidates(_ context.Context, filter repository.QuickPickFilter) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPickFilter = filter
	var out []*model.Profile
	for _, p := range f.profiles {
		if p.UserID == filter.UserID || !p.IsComplete() || f.blockedLocked(filter.UserID, p.UserID) {
			continue
		}
		if !p.PreferredGender.Accepts(filter.Gender) || !filter.PreferredGender.Accepts(p.Gender) {
			continue
		}
		acted := false
		for _, a := range f.actions {
			if a.UserID == filter.UserID && a.TargetUserID == p.UserID {
				acted = true
			}
		}
		for _, in := range f.interests {
			if in.Status != model.InterestWithdrawn &&
				((in.FromUserID == filter.UserID && in.ToUserID == p.UserID) || (in.FromUserID == p.UserID && in.ToUserID == filter.UserID)) {
				acted = true
			}
		}
		if acted {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) RecordQuickPickAction(_ context.Context, a *model.QuickPickAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.actions = append(f.actions, &cp)
	return nil
}

// safety

func (f *fakeStore) BlockUser(_ context.Context, block *model.Block) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[block.BlockedID]; !ok {
		return nil, repository.ErrUserNotFound
	}
	f.blocks[[2]string{block.BlockerID, block.BlockedID}] = block.CreatedAt
	for _, m := range f.matches {
		if m.Status == model.MatchActive && m.Involves(block.BlockerID) && m.Involves(block.BlockedID) {
			m.Status = model.MatchUnmatched
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UnblockUser(_ context.Context, blockerID, blockedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{blockerID, blockedID}
	if _, ok := f.blocks[key]; !ok {
		return repository.ErrBlockNotFound
	}
	delete(f.blocks, key)
	return nil
}

func (f *fakeStore) ListBlocks(_ context.Context, blockerID string) ([]*model.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Block
	for key, at := range f.blocks {
		if key[0] == blockerID {
			out = append(out, &model.Block{BlockerID: key[0], BlockedID: key[1], CreatedAt: at})
		}
	}
	return out, nil
}

func (f *fakeStore) CreateReport(_ context.Context, report *model.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.ReporterID == report.ReporterID && r.ReportedID == report.ReportedID && r.Status == model.ReportPending {
			return repository.ErrReportExists
		}
	}
	cp := *report
	f.reports[report.ID] = &cp
	return nil
}

// admin

func (f *fakeStore) GetAdminStats(_ context.Context, _ time.Time) (*model.AdminStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.AdminStats{UsersByPlan: map[model.Plan]int64{}}
	for _, u := range f.users {
		stats.TotalUsers++
		if u.Banned {
			stats.BannedUsers++
		}
		stats.UsersByPlan[u.Plan]++
	}
	return stats, nil
}

func (f *fakeStore) ListUsersAdmin(_ context.Context, _ repository.AdminUserFilter, _ string, _ int) ([]*model.AdminProfile, string, error) {
	return nil, "", nil
}

func (f *fakeStore) SetUserBan(_ context.Context, id string, banned bool, reason string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.Banned = banned
	u.BannedReason = reason
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SetUserPlan(_ context.Context, id string, plan model.Plan, expiresAt *time.Time) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.Plan = plan
	u.PlanExpiresAt = expiresAt
	cp := *u
	return &cp, nil
}

func (f *fakeStore) ListReports(_ context.Context, _ repository.ReportFilter, _ string, _ int) ([]*model.Report, string, error) {
	return nil, "", nil
}

func (f *fakeStore) UpdateReportStatus(_ context.Context, id string, status model.ReportStatus) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	r.Status = status
	cp := *r
	return &cp, nil
}

// notifications

func (f *fakeStore) UpsertDevice(_ context.Context, device *model.DeviceToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *device
	f.devices[device.Token] = &cp
	return nil
}

func (f *fakeStore) DeleteDevice(_ context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[token]; ok && d.UserID == userID {
		delete(f.devices, token)
	}
	return nil
}

func (f *fakeStore) CreateNotification(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *n
	f.notifications = append(f.notifications, &cp)
	return nil
}

func (f *fakeStore) ListNotifications(_ context.Context, userID string, unreadOnly bool, _ int) ([]*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Notification
	for _, n := range f.notifications {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationsRead(_ context.Context, userID string, ids []string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for _, item := range f.notifications {
		if item.UserID == userID && item.ReadAt == nil && (len(ids) == 0 || want[item.ID]) {
			item.ReadAt = &now
			n++
		}
	}
	return n, nil
}

// fakeCache implements the Redis-backed collaborators.
type fakeCache struct {
	mu        sync.Mutex
	profiles  map[string]*model.Profile
	picks     map[string][]string
	denied    map[string]time.Time
	revoked   map[string]time.Time
	online    map[string]bool
	pickReads int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		profiles: map[string]*model.Profile{},
		picks:    map[string][]string{},
		denied:   map[string]time.Time{},
		revoked:  map[string]time.Time{},
		online:   map[string]bool{},
	}
}

func (c *fakeCache) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *p
	return &cp, nil
}

func (c *fakeCache) SetProfile(_ context.Context, p *model.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	c.profiles[p.UserID] = &cp
	return nil
}

func (c *fakeCache) DeleteProfile(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.profiles, userID)
	return nil
}

func (c *fakeCache) GetQuickPicks(_ context.Context, userID, day string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pickReads++
	ids, ok := c.picks[userID+":"+day]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return append([]string(nil), ids...), nil
}

func (c *fakeCache) SetQuickPicks(_ context.Context, userID, day string, ids []string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.picks[userID+":"+day] = append([]string{}, ids...)
	return nil
}

func (c *fakeCache) RemoveQuickPick(_ context.Context, userID, day, targetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := userID + ":" + day
	if _, ok := c.picks[key]; !ok {
		return nil
	}
	var kept []string
	for _, id := range c.picks[key] {
		if id != targetID {
			kept = append(kept, id)
		}
	}
	c.picks[key] = append([]string{}, kept...)
	return nil
}

func (c *fakeCache) DenyToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.denied[tokenID] = expiresAt
	return nil
}

func (c *fakeCache) RevokeUserTokens(_ context.Context, userID string, at time.Time, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[userID] = at
	return nil
}

func (c *fakeCache) IsOnline(_ context.Context, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online[userID], nil
}

// recorder collects notifications and realtime events.
type recorder struct {
	mu            sync.Mutex
	notifications []recordedNotification
	events        []recordedEvent
	views         []*model.ProfileView
}

type recordedNotification struct {
	UserID string
	Type   model.NotificationType
	Data   map[string]string
}

type recordedEvent struct {
	UserID string
	Event  model.Event
}

func (r *recorder) Notify(_ context.Context, userID string, kind model.NotificationType, _, _ string, data map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, recordedNotification{UserID: userID, Type: kind, Data: data})
}

func (r *recorder) Publish(_ context.Context, userID string, event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{UserID: userID, Event: event})
}

func (r *recorder) PublishProfileView(_ context.Context, view *model.ProfileView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, view)
}

func (r *recorder) notificationsFor(userID string, kind model.NotificationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.notifications {
		if item.UserID == userID && item.Type == kind {
			n++
		}
	}
	return n
}

func (r *recorder) eventsFor(userID string, kind model.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.events {
		if item.UserID == userID && item.Event.Type == kind {
			n++
		}
	}
	return n
}
