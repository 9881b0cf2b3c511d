package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpctl/controlplane/internal/decision"
	"github.com/perpctl/controlplane/internal/domain"
)

type fakeModelLister struct {
	models []domain.Model
}

func (f *fakeModelLister) ListEnabledModels() ([]domain.Model, error) { return f.models, nil }

type fakeTrading struct {
	buyCalls  []string
	sellCalls []string
	panicOn   string
	errOn     string
}

func (f *fakeTrading) ExecuteBuyCycle(ctx context.Context, model domain.Model, engine decision.Engine) (domain.CycleResult, error) {
	if model.ID == f.panicOn {
		panic("cycle blew up")
	}
	f.buyCalls = append(f.buyCalls, model.ID)
	if model.ID == f.errOn {
		return domain.CycleResult{}, errors.New("cycle failed")
	}
	return domain.CycleResult{Success: true}, nil
}

func (f *fakeTrading) ExecuteSellCycle(ctx context.Context, model domain.Model, engine decision.Engine) (domain.CycleResult, error) {
	f.sellCalls = append(f.sellCalls, model.ID)
	return domain.CycleResult{Success: true}, nil
}

type fakeResolver struct{}

func (f *fakeResolver) Resolve(model domain.Model) (decision.Engine, error) { return nil, nil }

func TestTickSkipsDisabledModels(t *testing.T) {
	models := &fakeModelLister{models: []domain.Model{
		{ID: "on", AutoBuyEnabled: true},
		{ID: "off", AutoBuyEnabled: false},
	}}
	trading := &fakeTrading{}
	o := New(models, trading, &fakeResolver{}, 15, 5)

	err := o.tick(context.Background(), "buy", func(m domain.Model) (bool, error) {
		return m.AutoBuyEnabled, o.runOneBuy(context.Background(), m)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, trading.buyCalls)
}

func TestTickSurvivesPerModelError(t *testing.T) {
	models := &fakeModelLister{models: []domain.Model{
		{ID: "bad", AutoBuyEnabled: true},
		{ID: "good", AutoBuyEnabled: true},
	}}
	trading := &fakeTrading{errOn: "bad"}
	o := New(models, trading, &fakeResolver{}, 15, 5)

	err := o.tick(context.Background(), "buy", func(m domain.Model) (bool, error) {
		return m.AutoBuyEnabled, o.runOneBuy(context.Background(), m)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bad", "good"}, trading.buyCalls, "failure on one model must not stop the sweep")
}

func TestTickSurvivesPerModelPanic(t *testing.T) {
	models := &fakeModelLister{models: []domain.Model{
		{ID: "boom", AutoBuyEnabled: true},
		{ID: "good", AutoBuyEnabled: true},
	}}
	trading := &fakeTrading{panicOn: "boom"}
	o := New(models, trading, &fakeResolver{}, 15, 5)

	err := o.tick(context.Background(), "buy", func(m domain.Model) (bool, error) {
		return m.AutoBuyEnabled, o.runOneBuy(context.Background(), m)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, trading.buyCalls)
}

func TestRunOneSellHonorsEnableFlag(t *testing.T) {
	trading := &fakeTrading{}
	o := New(&fakeModelLister{}, trading, &fakeResolver{}, 15, 5)

	require.NoError(t, o.runOneSell(context.Background(), domain.Model{ID: "m", AutoSellEnabled: false}))
	assert.Empty(t, trading.sellCalls)

	require.NoError(t, o.runOneSell(context.Background(), domain.Model{ID: "m", AutoSellEnabled: true}))
	assert.Equal(t, []string{"m"}, trading.sellCalls)
}
