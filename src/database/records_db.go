package database

import (
	"context"
	"time"

	"stratbot/src/datamodels"
)

type RecordDb interface {
	WriteBacktestRun(ctx context.Context, run datamodels.BacktestRunRecord) error
	RecordFill(ctx context.Context, intent datamodels.OrderIntent, result datamodels.ExecutionResult) error
	RecordAlertEvent(ctx context.Context, rule datamodels.ThresholdRule, bar datamodels.NormalizedBar) error
	GetFills(ctx context.Context, startTime time.Time, endTime time.Time, symbol *string, side *datamodels.OrderSide) ([]datamodels.FillRecord, error)
}

func (d *databaseImplementation) WriteBacktestRun(
	ctx context.Context,
	run datamodels.BacktestRunRecord) error {
	return d.gormDb.WithContext(ctx).Create(&run).Error
}

func (d *databaseImplementation) RecordFill(
	ctx context.Context,
	intent datamodels.OrderIntent,
	result datamodels.ExecutionResult) error {

	record := datamodels.FillRecord{
		Broker:     intent.Broker,
		AccountRef: intent.AccountRef,
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		OrderType:  intent.OrderType,
		Quantity:   intent.Quantity,
		Price:      intent.Price,
		OrderId:    result.OrderId,
		Status:     result.Status,
		Paper:      intent.Paper,
		Timestamp:  time.Now().UTC(),
	}
	return d.gormDb.WithContext(ctx).Create(&record).Error
}

func (d *databaseImplementation) RecordAlertEvent(
	ctx context.Context,
	rule datamodels.ThresholdRule,
	bar datamodels.NormalizedBar) error {

	record := datamodels.AlertEventRecord{
		RuleId:     rule.Id,
		Symbol:     rule.Symbol,
		Timeframe:  rule.Timeframe,
		Comparator: string(rule.Comparator),
		Value:      rule.Value,
		BarClose:   bar.Close,
		Timestamp:  bar.Ts,
	}
	return d.gormDb.WithContext(ctx).Create(&record).Error
}

func (d *databaseImplementation) GetFills(
	ctx context.Context,
	startTime time.Time,
	endTime time.Time,
	symbol *string,
	side *datamodels.OrderSide) ([]datamodels.FillRecord, error) {

	query := d.gormDb.WithContext(ctx).Model(&datamodels.FillRecord{})

	if symbol != nil {
		query = query.Where("symbol = ?", *symbol)
	}
	if side != nil {
		query = query.Where("side = ?", *side)
	}
	query = query.Where("timestamp BETWEEN ? AND ?", startTime, endTime)

	var fills []datamodels.FillRecord
	if err := query.Find(&fills).Error; err != nil {
		return nil, err
	}
	return fills, nil
}
