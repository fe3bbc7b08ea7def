package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/providers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
	apperrors "github.com/Zubair-mohamed/myclinic-backend/pkg/errors"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// In-memory fakes. They enforce the same storage-level invariants the
// Postgres adapters rely on (slot uniqueness, single active queue entry),
// so the services under test see the same failure modes.

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(uow repositories.UnitOfWork) error) error {
	return fn(struct{}{})
}

// txManagerFunc adapts a function to the TxManager interface, letting tests
// interleave competing work between a snapshot read and the unit of work.
type txManagerFunc func(ctx context.Context, fn func(uow repositories.UnitOfWork) error) error

func (f txManagerFunc) WithinTx(ctx context.Context, fn func(uow repositories.UnitOfWork) error) error {
	return f(ctx, fn)
}

// --- wallets ---

type fakeWalletRepo struct {
	mu           sync.Mutex
	wallets      map[string]*entities.Wallet // by user id
	transactions []*entities.Transaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[string]*entities.Wallet)}
}

func (f *fakeWalletRepo) GetByUserID(ctx context.Context, userID string) (*entities.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.wallets[userID]; ok {
		copied := *w
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeWalletRepo) GetByUserIDForUpdate(ctx context.Context, uow repositories.UnitOfWork, userID string) (*entities.Wallet, error) {
	return f.GetByUserID(ctx, userID)
}

func (f *fakeWalletRepo) Create(ctx context.Context, uow repositories.UnitOfWork, wallet *entities.Wallet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.wallets[wallet.UserID]; ok {
		return apperrors.NewConflictError("wallet already exists for user")
	}
	copied := *wallet
	f.wallets[wallet.UserID] = &copied
	return nil
}

func (f *fakeWalletRepo) UpdateBalance(ctx context.Context, uow repositories.UnitOfWork, walletID string, balance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.wallets {
		if w.ID == walletID {
			w.Balance = balance
			return nil
		}
	}
	return apperrors.NewNotFoundError("wallet not found")
}

func (f *fakeWalletRepo) CreateTransaction(ctx context.Context, uow repositories.UnitOfWork, txn *entities.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *txn
	f.transactions = append(f.transactions, &copied)
	return nil
}

func (f *fakeWalletRepo) ListTransactions(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Transaction
	for _, t := range f.transactions {
		if t.UserID != userID {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeWalletRepo) balanceOf(userID string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.wallets[userID]; ok {
		return w.Balance
	}
	return decimal.Zero
}

func (f *fakeWalletRepo) signedSum(userID string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, t := range f.transactions {
		if t.UserID == userID {
			sum = sum.Add(t.SignedAmount())
		}
	}
	return sum
}

// --- appointments ---

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[string]*entities.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[string]*entities.Appointment)}
}

func (f *fakeAppointmentRepo) Create(ctx context.Context, uow repositories.UnitOfWork, appointment *entities.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ap := range f.appointments {
		if ap.Status == entities.AppointmentStatusUpcoming &&
			ap.DoctorID == appointment.DoctorID && ap.Date == appointment.Date && ap.Time == appointment.Time {
			return apperrors.NewConflictError("the requested slot is already booked")
		}
	}
	copied := *appointment
	f.appointments[appointment.ID] = &copied
	return nil
}

func (f *fakeAppointmentRepo) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ap, ok := f.appointments[id]; ok {
		copied := *ap
		return &copied, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
}

func (f *fakeAppointmentRepo) GetByIDForUpdate(ctx context.Context, uow repositories.UnitOfWork, id string) (*entities.Appointment, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeAppointmentRepo) Update(ctx context.Context, uow repositories.UnitOfWork, appointment *entities.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.appointments[appointment.ID]; !ok {
		return apperrors.NewNotFoundError("appointment not found")
	}
	copied := *appointment
	f.appointments[appointment.ID] = &copied
	return nil
}

func (f *fakeAppointmentRepo) GetUpcomingAt(ctx context.Context, doctorID, date, timeOfDay string) (*entities.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ap := range f.appointments {
		if ap.Status == entities.AppointmentStatusUpcoming &&
			ap.DoctorID == doctorID && ap.Date == date && ap.Time == timeOfDay {
			copied := *ap
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeAppointmentRepo) ListUpcomingByPatientDate(ctx context.Context, patientID, date string) ([]*entities.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range f.appointments {
		if ap.Status == entities.AppointmentStatusUpcoming && ap.PatientID == patientID && ap.Date == date {
			copied := *ap
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListUpcomingByDoctorDate(ctx context.Context, doctorID, date, hospitalID string) ([]*entities.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range f.appointments {
		if ap.Status == entities.AppointmentStatusUpcoming && ap.DoctorID == doctorID && ap.Date == date && ap.HospitalID == hospitalID {
			copied := *ap
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := timeutil.ParseClock(out[i].Time)
		b, _ := timeutil.ParseClock(out[j].Time)
		return a < b
	})
	return out, nil
}

func (f *fakeAppointmentRepo) ListUpcomingByDoctorRange(ctx context.Context, doctorID, fromDate, toDate string) ([]*entities.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range f.appointments {
		if ap.Status == entities.AppointmentStatusUpcoming && ap.DoctorID == doctorID &&
			ap.Date >= fromDate && ap.Date <= toDate {
			copied := *ap
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListReminderCandidates(ctx context.Context, class repositories.ReminderClass) ([]*entities.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range f.appointments {
		if ap.Status != entities.AppointmentStatusUpcoming {
			continue
		}
		if class == repositories.Reminder24h && ap.Reminder24hSent {
			continue
		}
		if class == repositories.Reminder1h && ap.Reminder1hSent {
			continue
		}
		copied := *ap
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeAppointmentRepo) MarkReminderSent(ctx context.Context, id string, class repositories.ReminderClass, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ap, ok := f.appointments[id]
	if !ok {
		return apperrors.NewNotFoundError("appointment not found")
	}
	if class == repositories.Reminder24h {
		ap.Reminder24hSent = true
		ap.Reminder24hSentAt = &sentAt
	} else {
		ap.Reminder1hSent = true
		ap.Reminder1hSentAt = &sentAt
	}
	return nil
}

func (f *fakeAppointmentRepo) ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range f.appointments {
		if ap.PatientID == patientID {
			copied := *ap
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListByDoctor(ctx context.Context, doctorID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Appointment
	for _, ap := range f.appointments {
		if ap.DoctorID == doctorID {
			copied := *ap
			out = append(out, &copied)
		}
	}
	return out, nil
}

// --- queue ---

type fakeQueueRepo struct {
	mu    sync.Mutex
	items map[string]*entities.QueueItem
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{items: make(map[string]*entities.QueueItem)}
}

func (f *fakeQueueRepo) Create(ctx context.Context, uow repositories.UnitOfWork, item *entities.QueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.PatientID != nil {
		for _, existing := range f.items {
			if existing.PatientID != nil && *existing.PatientID == *item.PatientID && existing.IsActive() {
				return apperrors.NewConflictError("patient already has an active queue entry")
			}
		}
	}
	copied := *item
	f.items[item.ID] = &copied
	return nil
}

func (f *fakeQueueRepo) GetByID(ctx context.Context, id string) (*entities.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.items[id]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, apperrors.NewNotFoundError("queue item not found")
}

func (f *fakeQueueRepo) Update(ctx context.Context, uow repositories.UnitOfWork, item *entities.QueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[item.ID]; !ok {
		return apperrors.NewNotFoundError("queue item not found")
	}
	copied := *item
	f.items[item.ID] = &copied
	return nil
}

func (f *fakeQueueRepo) GetActiveByPatient(ctx context.Context, patientID string) (*entities.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.PatientID != nil && *item.PatientID == patientID && item.IsActive() {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeQueueRepo) ListWaitingByDoctor(ctx context.Context, doctorID string) ([]*entities.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.QueueItem
	for _, item := range f.items {
		if item.DoctorID == doctorID && item.Status == entities.QueueStatusWaiting {
			copied := *item
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.Before(out[j].CheckInTime) })
	return out, nil
}

func (f *fakeQueueRepo) GetServingByDoctor(ctx context.Context, doctorID string) (*entities.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.DoctorID == doctorID && item.Status == entities.QueueStatusServing {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeQueueRepo) ListHeldByDoctor(ctx context.Context, doctorID string) ([]*entities.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.QueueItem
	for _, item := range f.items {
		if item.DoctorID == doctorID && item.Status == entities.QueueStatusHeld {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeQueueRepo) CountWaitingByDoctor(ctx context.Context, doctorID string) (int, error) {
	waiting, _ := f.ListWaitingByDoctor(ctx, doctorID)
	return len(waiting), nil
}

// --- tickets ---

type fakeTicketRepo struct {
	mu        sync.Mutex
	sequences map[string]int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{sequences: make(map[string]int)}
}

func (f *fakeTicketRepo) Next(ctx context.Context, uow repositories.UnitOfWork, doctorID, date string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := doctorID + "|" + date
	f.sequences[key]++
	return f.sequences[key], nil
}

// --- directory ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entities.User
}

func newFakeUserRepo(users ...*entities.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]*entities.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
}

func (f *fakeUserRepo) ListDoctorsBySpecialty(ctx context.Context, hospitalID, specialtyID string) ([]*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.User
	for _, u := range f.users {
		if u.Role == entities.RoleDoctor && u.IsUsable() && u.SpecialtyID == specialtyID && u.PracticesAt(hospitalID) {
			copied := *u
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeHospitalRepo struct {
	hospitals map[string]*entities.Hospital
	services  map[string]*entities.ServiceType
}

func newFakeHospitalRepo() *fakeHospitalRepo {
	return &fakeHospitalRepo{
		hospitals: make(map[string]*entities.Hospital),
		services:  make(map[string]*entities.ServiceType),
	}
}

func (f *fakeHospitalRepo) GetByID(ctx context.Context, id string) (*entities.Hospital, error) {
	if h, ok := f.hospitals[id]; ok {
		return h, nil
	}
	return nil, apperrors.NewNotFoundError("hospital not found")
}

func (f *fakeHospitalRepo) GetServiceType(ctx context.Context, id string) (*entities.ServiceType, error) {
	if st, ok := f.services[id]; ok {
		return st, nil
	}
	return nil, apperrors.NewNotFoundError("service type not found")
}

// --- providers ---

type recordedDispatch struct {
	UserID   string
	Category entities.NotificationCategory
	Content  *entities.NotificationContent
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []recordedDispatch
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, userID string, category entities.NotificationCategory, content *entities.NotificationContent) *entities.DispatchResult {
	f.record(userID, category, content)
	return &entities.DispatchResult{Delivered: map[entities.NotificationChannel]bool{entities.ChannelPush: true}}
}

func (f *fakeDispatcher) DispatchAsync(userID string, category entities.NotificationCategory, content *entities.NotificationContent) {
	f.record(userID, category, content)
}

func (f *fakeDispatcher) record(userID string, category entities.NotificationCategory, content *entities.NotificationContent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, recordedDispatch{UserID: userID, Category: category, Content: content})
}

func (f *fakeDispatcher) count(category entities.NotificationCategory) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.dispatched {
		if d.Category == category {
			n++
		}
	}
	return n
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []*entities.QueueEvent
}

func (f *fakeEventBus) Publish(ctx context.Context, channel string, event *entities.QueueEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error) {
	return nil, nil
}

func (f *fakeEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }
func (f *fakeEventBus) Close() error                                          { return nil }

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	acquires int
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	if f.held {
		return "", false, nil
	}
	f.held = true
	return "token", true, nil
}

func (f *fakeLocker) Release(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	return nil
}

type fakeNotificationLog struct {
	mu      sync.Mutex
	records []*entities.NotificationRecord
}

func (f *fakeNotificationLog) Create(ctx context.Context, record *entities.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeNotificationLog) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, nil
}

type fakeSender struct {
	channel entities.NotificationChannel
	fail    bool

	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Channel() entities.NotificationChannel { return f.channel }

func (f *fakeSender) Send(ctx context.Context, userID, title, body string, data map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", fmt.Errorf("gateway unavailable")
	}
	f.sent = append(f.sent, body)
	return "msg-" + userID, nil
}

var _ providers.Dispatcher = (*fakeDispatcher)(nil)
var _ providers.EventBus = (*fakeEventBus)(nil)
var _ providers.Locker = (*fakeLocker)(nil)
var _ providers.ChannelSender = (*fakeSender)(nil)
var _ repositories.TxManager = (*fakeTxManager)(nil)
var _ repositories.WalletRepository = (*fakeWalletRepo)(nil)
var _ repositories.AppointmentRepository = (*fakeAppointmentRepo)(nil)
var _ repositories.QueueRepository = (*fakeQueueRepo)(nil)
var _ repositories.TicketRepository = (*fakeTicketRepo)(nil)
var _ repositories.UserRepository = (*fakeUserRepo)(nil)
var _ repositories.HospitalRepository = (*fakeHospitalRepo)(nil)
var _ repositories.NotificationLogRepository = (*fakeNotificationLog)(nil)
