package bridge

import (
	"database/sql"
	"time"

	"github.com/jd3nn1s/obdlink/telemetry"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `CREATE TABLE IF NOT EXISTS car_metrics (
	time              TIMESTAMP NOT NULL,
	rpm               INTEGER,
	speed             INTEGER,
	coolant_temp      INTEGER,
	intake_temp       INTEGER,
	throttle          INTEGER,
	engine_load       INTEGER,
	manifold_pressure INTEGER,
	fuel_level        INTEGER,
	timing_advance    INTEGER,
	boost_pressure    INTEGER,
	actual_gear       INTEGER,
	battery_voltage   INTEGER,
	demanded_torque   INTEGER,
	actual_torque     INTEGER,
	fuel_rate         INTEGER,
	torque_slip       INTEGER
);
CREATE INDEX IF NOT EXISTS car_metrics_time ON car_metrics(time)`

// Metric is a stored row.
type Metric struct {
	Time time.Time `json:"time"`
	telemetry.Payload
}

type MetricStore struct {
	db *sql.DB
}

func NewMetricStore(path string) (*MetricStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "unable to create car_metrics")
	}
	return &MetricStore{db: db}, nil
}

func (s *MetricStore) Insert(p telemetry.Payload, at time.Time) error {
	_, err := s.db.Exec(`INSERT INTO car_metrics (
		time, rpm, speed, coolant_temp, intake_temp,
		throttle, engine_load, manifold_pressure, fuel_level,
		timing_advance, boost_pressure,
		actual_gear, battery_voltage, demanded_torque, actual_torque,
		fuel_rate, torque_slip
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		at.UTC(), p.RPM, p.Speed, p.CoolantTemp, p.IntakeTemp,
		p.Throttle, p.EngineLoad, p.ManifoldPressure, p.FuelLevel,
		p.TimingAdvance, p.BoostPressure,
		p.ActualGear, p.BatteryVoltage, p.DemandedTorque, p.ActualTorque,
		p.FuelRate, p.TorqueSlip)
	if err != nil {
		return errors.Wrap(err, "unable to insert car_metrics row")
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (s *MetricStore) Recent(limit int) ([]Metric, error) {
	rows, err := s.db.Query(`SELECT
		time, rpm, speed, coolant_temp, intake_temp,
		throttle, engine_load, manifold_pressure, fuel_level,
		timing_advance, boost_pressure,
		actual_gear, battery_voltage, demanded_torque, actual_torque,
		fuel_rate, torque_slip
	FROM car_metrics ORDER BY time DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "unable to query car_metrics")
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		m := Metric{}
		p := &m.Payload
		if err := rows.Scan(&m.Time, &p.RPM, &p.Speed, &p.CoolantTemp, &p.IntakeTemp,
			&p.Throttle, &p.EngineLoad, &p.ManifoldPressure, &p.FuelLevel,
			&p.TimingAdvance, &p.BoostPressure,
			&p.ActualGear, &p.BatteryVoltage, &p.DemandedTorque, &p.ActualTorque,
			&p.FuelRate, &p.TorqueSlip); err != nil {
			return nil, errors.Wrap(err, "unable to scan car_metrics row")
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (s *MetricStore) Close() error {
	return s.db.Close()
}
