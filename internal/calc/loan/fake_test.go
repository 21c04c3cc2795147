package loan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"GoldPledge/internal/model"
)

type fakeLookup struct {
	schemes map[int]model.InterestScheme
	rates   map[string]model.GoldRate
	err     error
}

func newFakeLookup() *fakeLookup {
	f := &fakeLookup{
		schemes: map[int]model.InterestScheme{
			1: {ID: 1, Rate: 0.5, Label: "0.5% Interest"},
			2: {ID: 2, Rate: 2.0, Label: "2% Interest"},
		},
		rates: map[string]model.GoldRate{},
	}
	for _, id := range []int{1, 2} {
		f.rates[key(model.Purity24K, id)] = model.GoldRate{ID: id, Purity: model.Purity24K, InterestSchemeID: id, RatePerGram: 6250}
	}
	return f
}

func key(p model.Purity, id int) string {
	return fmt.Sprintf("%s/%d", p, id)
}

func (f *fakeLookup) GetGoldRate(_ context.Context, purity model.Purity, schemeID int) (model.GoldRate, error) {
	if f.err != nil {
		return model.GoldRate{}, f.err
	}
	r, ok := f.rates[key(purity, schemeID)]
	if !ok {
		return model.GoldRate{}, model.ErrNotFound
	}
	return r, nil
}

func (f *fakeLookup) GetInterestScheme(_ context.Context, id int) (model.InterestScheme, error) {
	if f.err != nil {
		return model.InterestScheme{}, f.err
	}
	s, ok := f.schemes[id]
	if !ok {
		return model.InterestScheme{}, model.ErrNotFound
	}
	return s, nil
}

var errStoreDown = errors.New("store down")

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(f *fakeLookup) *Service {
	svc := NewService(f, quietLogger())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func ptr(v float64) *float64 { return &v }
