package database

import "stratbot/src/datamodels"

var DbTables = []interface{}{
	&datamodels.BacktestRunRecord{},
	&datamodels.FillRecord{},
	&datamodels.AlertEventRecord{},
}
