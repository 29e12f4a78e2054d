// Package repotest provides in-memory repositories for service and job tests.
package repotest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
)

// ErrForced is returned by repositories whose Fail flag is set.
var ErrForced = errors.New("forced repository failure")

func duplicateKey() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
}

// applySet copies the $set fields onto doc through its bson form.
func applySet(doc interface{}, fields bson.M) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range fields {
		m[k] = v
	}
	raw, err = bson.Marshal(m)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, doc)
}

func copySet(fields bson.M) bson.M {
	out := make(bson.M, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["updated_at"] = time.Now().UTC()
	return out
}

type Users struct {
	mu    sync.Mutex
	Items map[primitive.ObjectID]*models.User
	Fail  bool
}

var _ repositories.UserRepository = (*Users)(nil)

func NewUsers(users ...*models.User) *Users {
	r := &Users{Items: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		r.Items[u.ID] = u
	}
	return r
}

func (r *Users) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrForced
	}
	for _, u := range r.Items {
		if u.Email == user.Email {
			return nil, duplicateKey()
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.Items[user.ID] = &stored
	return user, nil
}

func (r *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrForced
	}
	for _, u := range r.Items {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrForced
	}
	u, ok := r.Items[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	out := *u
	return &out, nil
}

func (r *Users) Update(_ context.Context, id primitive.ObjectID, fields bson.M) (*mongo.UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrForced
	}
	u, ok := r.Items[id]
	if !ok {
		return &mongo.UpdateResult{}, nil
	}
	if email, ok := fields["email"].(string); ok {
		for otherID, other := range r.Items {
			if otherID != id && other.Email == email {
				return nil, duplicateKey()
			}
		}
	}
	if err := applySet(u, copySet(fields)); err != nil {
		return nil, err
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (r *Users) Delete(_ context.Context, id primitive.ObjectID) (*mongo.DeleteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, ErrForced
	}
	if _, ok := r.Items[id]; !ok {
		return &mongo.DeleteResult{}, nil
	}
	delete(r.Items, id)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (r *Users) CountAll(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return 0, ErrForced
	}
	return int64(len(r.Items)), nil
}

type OTPs struct {
	mu    sync.Mutex
	Items []*models.OTP
	Now   func() time.Time
}

var _ repositories.OTPRepository = (*OTPs)(nil)

func NewOTPs() *OTPs {
	return &OTPs{Now: time.Now}
}

func (r *OTPs) Create(_ context.Context, otp *models.OTP) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if otp.ID.IsZero() {
		otp.ID = primitive.NewObjectID()
	}
	otp.CreatedAt = r.Now().UTC()
	stored := *otp
	r.Items = append(r.Items, &stored)
	return otp, nil
}

func (r *OTPs) Consume(_ context.Context, email, code, purpose string) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.Now()
	for i := len(r.Items) - 1; i >= 0; i-- {
		o := r.Items[i]
		if o.Email == email && o.Code == code && o.Purpose == purpose && !o.Used && o.ExpiresAt.After(now) {
			o.Used = true
			out := *o
			return &out, nil
		}
	}
	return nil, nil
}

func (r *OTPs) InvalidateActive(_ context.Context, email, purpose string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.Items {
		if o.Email == email && o.Purpose == purpose {
			o.Used = true
		}
	}
	return nil
}

func (r *OTPs) DeleteExpired(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.Now()
	kept := r.Items[:0]
	var deleted int64
	for _, o := range r.Items {
		if o.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	r.Items = kept
	return deleted, nil
}

// Latest returns the newest code issued for email and purpose, or "".
func (r *OTPs) Latest(email, purpose string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Items) - 1; i >= 0; i-- {
		if o := r.Items[i]; o.Email == email && o.Purpose == purpose {
			return o.Code
		}
	}
	return ""
}

type Services struct {
	mu    sync.Mutex
	Items map[primitive.ObjectID]*models.Service
}

var _ repositories.ServiceRepository = (*Services)(nil)

func NewServices(services ...*models.Service) *Services {
	r := &Services{Items: map[primitive.ObjectID]*models.Service{}}
	for _, s := range services {
		if s.ID.IsZero() {
			s.ID = primitive.NewObjectID()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now().UTC()
		}
		r.Items[s.ID] = s
	}
	return r
}

func (r *Services) Create(_ context.Context, svc *models.Service) (*models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if svc.ID.IsZero() {
		svc.ID = primitive.NewObjectID()
	}
	svc.CreatedAt = time.Now().UTC()
	svc.UpdatedAt = svc.CreatedAt
	if svc.Images == nil {
		svc.Images = []string{}
	}
	stored := *svc
	r.Items[svc.ID] = &stored
	return svc, nil
}

func (r *Services) FindByID(_ context.Context, id primitive.ObjectID) (*models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Items[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	out := *s
	return &out, nil
}

func (r *Services) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Service{}
	for _, id := range ids {
		if s, ok := r.Items[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *Services) sorted(keep func(*models.Service) bool) []models.Service {
	out := []models.Service{}
	for _, s := range r.Items {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *Services) FindActive(_ context.Context, f models.ServiceFilter) ([]models.Service, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contains := func(field, sub string) bool {
		return strings.Contains(strings.ToLower(field), strings.ToLower(sub))
	}
	all := r.sorted(func(s *models.Service) bool {
		switch {
		case s.Status != models.ServiceStatusActive:
			return false
		case f.Category != "" && s.Category != f.Category:
			return false
		case f.Location != "" && !contains(s.Location, f.Location):
			return false
		case f.Query != "" && !contains(s.Title, f.Query) && !contains(s.Description, f.Query):
			return false
		case f.MinPrice != nil && s.Price < *f.MinPrice:
			return false
		case f.MaxPrice != nil && s.Price > *f.MaxPrice:
			return false
		case !f.ExcludeProvider.IsZero() && s.ProviderID == f.ExcludeProvider:
			return false
		}
		for _, id := range f.ExcludeIDs {
			if s.ID == id {
				return false
			}
		}
		return true
	})

	total := int64(len(all))
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *Services) FindByProvider(_ context.Context, providerID primitive.ObjectID) ([]models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(s *models.Service) bool { return s.ProviderID == providerID }), nil
}

func (r *Services) Update(_ context.Context, providerID, id primitive.ObjectID, fields bson.M) (*mongo.UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Items[id]
	if !ok || s.ProviderID != providerID {
		return &mongo.UpdateResult{}, nil
	}
	if err := applySet(s, copySet(fields)); err != nil {
		return nil, err
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (r *Services) AddImage(_ context.Context, providerID, id primitive.ObjectID, url string) (*mongo.UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Items[id]
	if !ok || s.ProviderID != providerID {
		return &mongo.UpdateResult{}, nil
	}
	s.Images = append(s.Images, url)
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (r *Services) UpdateRating(_ context.Context, id primitive.ObjectID, summary models.RatingSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Items[id]; ok {
		s.Rating = summary.Average
		s.ReviewCount = summary.Count
	}
	return nil
}

func (r *Services) DeactivateByProvider(_ context.Context, providerID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.Items {
		if s.ProviderID == providerID && s.Status == models.ServiceStatusActive {
			s.Status = models.ServiceStatusInactive
			n++
		}
	}
	return n, nil
}

func (r *Services) Delete(_ context.Context, providerID, id primitive.ObjectID) (*mongo.DeleteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Items[id]
	if !ok || s.ProviderID != providerID {
		return &mongo.DeleteResult{}, nil
	}
	delete(r.Items, id)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

type Bookings struct {
	mu    sync.Mutex
	Items map[primitive.ObjectID]*models.Booking
}

var _ repositories.BookingRepository = (*Bookings)(nil)

func NewBookings(bookings ...*models.Booking) *Bookings {
	r := &Bookings{Items: map[primitive.ObjectID]*models.Booking{}}
	for _, b := range bookings {
		if b.ID.IsZero() {
			b.ID = primitive.NewObjectID()
		}
		r.Items[b.ID] = b
	}
	return r
}

func (r *Bookings) Create(_ context.Context, b *models.Booking) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	stored := *b
	r.Items[b.ID] = &stored
	return b, nil
}

func (r *Bookings) FindByID(_ context.Context, id primitive.ObjectID) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.Items[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	out := *b
	return &out, nil
}

func (r *Bookings) filter(keep func(*models.Booking) bool) []models.Booking {
	out := []models.Booking{}
	for _, b := range r.Items {
		if keep(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (r *Bookings) FindByUser(_ context.Context, userID primitive.ObjectID, status string) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(b *models.Booking) bool {
		return b.UserID == userID && (status == "" || b.Status == status)
	}), nil
}

func (r *Bookings) FindByProvider(_ context.Context, providerID primitive.ObjectID, status string) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(b *models.Booking) bool {
		return b.ProviderID == providerID && (status == "" || b.Status == status)
	}), nil
}

func (r *Bookings) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to string) (*mongo.UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.Items[id]
	if !ok || b.Status != from {
		return &mongo.UpdateResult{}, nil
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (r *Bookings) HasCompleted(_ context.Context, userID, serviceID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.Items {
		if b.UserID == userID && b.ServiceID == serviceID && b.Status == models.BookingCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *Bookings) ProviderStats(_ context.Context, providerID primitive.ObjectID) (map[string]int64, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	var revenue float64
	for _, b := range r.Items {
		if b.ProviderID != providerID {
			continue
		}
		counts[b.Status]++
		if b.Status == models.BookingConfirmed || b.Status == models.BookingCompleted {
			revenue += b.TotalPrice
		}
	}
	return counts, revenue, nil
}

func (r *Bookings) CompleteEnded(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.Items {
		if b.Status == models.BookingConfirmed && b.EndDate.Before(before) {
			b.Status = models.BookingCompleted
			n++
		}
	}
	return n, nil
}

func (r *Bookings) FindDueReminders(_ context.Context, from, to time.Time) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(b *models.Booking) bool {
		return b.Status == models.BookingConfirmed && !b.ReminderSent &&
			!b.StartDate.Before(from) && b.StartDate.Before(to)
	}), nil
}

func (r *Bookings) MarkReminderSent(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.Items[id]; ok {
		b.ReminderSent = true
	}
	return nil
}

type Reviews struct {
	mu    sync.Mutex
	Items map[primitive.ObjectID]*models.Review
}

var _ repositories.ReviewRepository = (*Reviews)(nil)

func NewReviews(reviews ...*models.Review) *Reviews {
	r := &Reviews{Items: map[primitive.ObjectID]*models.Review{}}
	for _, rv := range reviews {
		if rv.ID.IsZero() {
			rv.ID = primitive.NewObjectID()
		}
		r.Items[rv.ID] = rv
	}
	return r
}

func (r *Reviews) Create(_ context.Context, review *models.Review) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.Items {
		if rv.ServiceID == review.ServiceID && rv.UserID == review.UserID {
			return nil, duplicateKey()
		}
	}
	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	review.CreatedAt = time.Now().UTC()
	stored := *review
	r.Items[review.ID] = &stored
	return review, nil
}

func (r *Reviews) FindByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.Items[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	out := *rv
	return &out, nil
}

func (r *Reviews) FindByService(_ context.Context, serviceID primitive.ObjectID) ([]models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Review{}
	for _, rv := range r.Items {
		if rv.ServiceID == serviceID {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Reviews) Exists(_ context.Context, serviceID, userID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.Items {
		if rv.ServiceID == serviceID && rv.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Reviews) Delete(_ context.Context, userID, id primitive.ObjectID) (*mongo.DeleteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.Items[id]
	if !ok || rv.UserID != userID {
		return &mongo.DeleteResult{}, nil
	}
	delete(r.Items, id)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (r *Reviews) Summarize(_ context.Context, serviceID primitive.ObjectID) (models.RatingSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum, count int
	for _, rv := range r.Items {
		if rv.ServiceID == serviceID {
			sum += rv.Rating
			count++
		}
	}
	if count == 0 {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{Average: float64(sum) / float64(count), Count: count}, nil
}

type Notifications struct {
	mu    sync.Mutex
	Items []*models.Notification
}

var _ repositories.NotificationRepository = (*Notifications)(nil)

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (r *Notifications) Create(_ context.Context, n *models.Notification) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	n.CreatedAt = time.Now().UTC()
	stored := *n
	r.Items = append(r.Items, &stored)
	return n, nil
}

func (r *Notifications) FindByUser(_ context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Notification{}
	for i := len(r.Items) - 1; i >= 0; i-- {
		n := r.Items[i]
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *Notifications) MarkRead(_ context.Context, userID, id primitive.ObjectID) (*mongo.UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.Items {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}
	return &mongo.UpdateResult{}, nil
}

func (r *Notifications) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.Items {
		if item.UserID == userID && !item.Read {
			item.Read = true
			n++
		}
	}
	return n, nil
}

// For returns the notifications stored for userID, oldest first.
func (r *Notifications) For(userID primitive.ObjectID) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.Items {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out
}
