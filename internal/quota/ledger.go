// Package quota meters resume scans for anonymous callers (by network
// address) and registered users, and decides whether a new scan may run.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ats-scanner/internal/apperr"
	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/usage"
	"ats-scanner/internal/domain/users"
	"ats-scanner/internal/logger"
	"ats-scanner/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = fmt.Errorf("user: %w", apperr.ErrNotFound)

const (
	subjectAnonymous  = "anonymous"
	subjectRegistered = "registered"
)

// Ledger reads and writes scan counters. Every counter mutation is a single
// conditional statement, so concurrent requests from one identity cannot lose
// increments.
type Ledger struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger.OrNop(log) }
}

func NewLedger(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:     db,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

// CheckAnonymousLimit decides for a caller without an account. An expired
// period is reset as a side effect of the read.
func (l *Ledger) CheckAnonymousLimit(ctx context.Context, address string, freeLimit int) (Decision, error) {
	now := l.clock()
	db := l.db.WithContext(ctx)

	var rec usage.AnonymousUsage
	err := db.Where("ip_address = ?", address).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := Decision{
			CanScan:        true,
			RemainingScans: max(0, freeLimit-1),
			IsFirstTime:    true,
			MembershipType: plans.TypeFree.String(),
		}
		observe(subjectAnonymous, d)
		return d, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("load anonymous usage: %w", err)
	}

	if rec.Expired(now) {
		// Only the request that wins the conditional update resets; the
		// others see its result on the re-read.
		res := db.Model(&usage.AnonymousUsage{}).
			Where("ip_address = ? AND reset_date < ?", address, now).
			Updates(map[string]any{
				"scan_count": 0,
				"reset_date": usage.NextResetDate(now),
			})
		if res.Error != nil {
			return Decision{}, fmt.Errorf("reset anonymous usage: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			l.logger.Info("anonymous usage period reset", logger.Subject(0, address)...)
		}
		if err := db.Where("ip_address = ?", address).First(&rec).Error; err != nil {
			return Decision{}, fmt.Errorf("reload anonymous usage: %w", err)
		}
	}

	d := freeTier(freeLimit, rec.ScanCount)
	d.MembershipType = plans.TypeFree.String()
	observe(subjectAnonymous, d)
	return d, nil
}

// CheckRegisteredLimit decides for a signed-in user. A membership whose end
// date has passed is switched off here and the free-tier rule applies in the
// same call. An unknown user is a denial, not an error.
func (l *Ledger) CheckRegisteredLimit(ctx context.Context, userID uint) (Decision, error) {
	now := l.clock()
	db := l.db.WithContext(ctx)

	var u users.User
	err := db.Preload("Membership").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := Decision{Reason: ReasonUserNotFound, MembershipType: plans.TypeFree.String()}
		observe(subjectRegistered, d)
		return d, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("load user %d: %w", userID, err)
	}

	m := u.Membership
	switch membership.StateOf(m, now) {
	case membership.StateActive:
		d := Decision{
			CanScan:           true,
			RemainingScans:    UnlimitedScans,
			HasPaidMembership: true,
			MembershipType:    m.Type.String(),
			ScanCount:         u.ScanCount,
		}
		observe(subjectRegistered, d)
		return d, nil

	case membership.StateExpired:
		if err := l.expire(ctx, m, now); err != nil {
			return Decision{}, err
		}
	}

	d := freeTier(plans.FreeScanLimit, u.ScanCount)
	d.MembershipType = plans.TypeFree.String()
	observe(subjectRegistered, d)
	return d, nil
}

// expire flips a stale membership off. It does not stamp last_event_at:
// this is a local observation, not a provider fact.
func (l *Ledger) expire(ctx context.Context, m *membership.Membership, now time.Time) error {
	res := l.db.WithContext(ctx).Model(&membership.Membership{}).
		Where("id = ? AND is_active = ? AND end_date <= ?", m.ID, true, now).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("expire membership %d: %w", m.ID, res.Error)
	}
	if res.RowsAffected > 0 {
		m.IsActive = false
		l.logger.Info("membership expired",
			zap.Uint("user_id", m.UserID),
			zap.Uint("membership_id", m.ID),
			zap.Stringer("type", m.Type),
		)
	}
	return nil
}

// RecordAnonymousScan counts a scan for address, creating the record with a
// fresh period on first use.
func (l *Ledger) RecordAnonymousScan(ctx context.Context, address string) error {
	now := l.clock()
	rec := usage.AnonymousUsage{
		IPAddress:     address,
		ScanCount:     1,
		FirstScanDate: now,
		LastScanDate:  now,
		ResetDate:     usage.NextResetDate(now),
	}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "ip_address"}},
			DoUpdates: clause.Assignments(map[string]any{
				"scan_count":     gorm.Expr("anonymous_usages.scan_count + ?", 1),
				"last_scan_date": now,
			}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("record anonymous scan: %w", err)
	}
	metrics.ScansRecorded.WithLabelValues(subjectAnonymous, "true").Inc()
	return nil
}

// RecordRegisteredScan stamps the last scan date and counts the scan unless
// the user holds a membership that is active right now.
func (l *Ledger) RecordRegisteredScan(ctx context.Context, userID uint) error {
	now := l.clock()
	db := l.db.WithContext(ctx)

	var m membership.Membership
	err := db.Where("user_id = ?", userID).First(&m).Error
	var current *membership.Membership
	switch {
	case err == nil:
		current = &m
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("load membership of user %d: %w", userID, err)
	}

	metered := !current.EffectivelyActive(now)
	updates := map[string]any{"last_scan_date": now}
	if metered {
		updates["scan_count"] = gorm.Expr("scan_count + ?", 1)
	}

	res := db.Model(&users.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("record scan for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	metrics.ScansRecorded.WithLabelValues(subjectRegistered, strconv.FormatBool(metered)).Inc()
	return nil
}

func observe(subject string, d Decision) {
	outcome := "permitted"
	switch {
	case d.Reason == ReasonUserNotFound:
		outcome = "not_found"
	case !d.CanScan:
		outcome = "denied"
	}
	metrics.QuotaDecisions.WithLabelValues(subject, outcome).Inc()
}
