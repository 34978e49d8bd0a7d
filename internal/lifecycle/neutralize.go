package lifecycle

import (
	"context"

	"dbmanager/internal/database"
)

// neutralizeSteps disable everything that talks to the outside world
var neutralizeSteps = []struct {
	step  string
	query string
}{
	{"ir_cron", "UPDATE ir_cron SET active = false"},
	{"ir_mail_server", "UPDATE ir_mail_server SET active = false"},
	{"fetchmail_server", "UPDATE fetchmail_server SET active = false"},
	{"payment_provider", "UPDATE payment_provider SET state = 'disabled' WHERE state NOT IN ('disabled', 'test')"},
	{"delivery_carrier", "UPDATE delivery_carrier SET prod_environment = false, active = false"},
}

// Neutralize disables outbound integrations of an existing database so it
// can be used outside production
func (m *Manager) Neutralize(ctx context.Context, name string) (rep *Report, err error) {
	done, err := m.begin("neutralize", name)
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	if err := m.requirePresent(ctx, name); err != nil {
		return nil, opError("neutralize", name, err)
	}

	h, err := m.server.Connect(ctx, name)
	if err != nil {
		return nil, opError("neutralize", name, err)
	}
	defer m.server.Release(name)

	rep = newReport(name)
	m.neutralize(ctx, rep, h)
	return rep, nil
}

// neutralize runs every step independently on an autocommit handle, so a
// table missing because its module is not installed only costs a warning.
func (m *Manager) neutralize(ctx context.Context, rep *Report, h *database.Handle) {
	for _, s := range neutralizeSteps {
		if _, err := h.ExecContext(ctx, s.query); err != nil {
			m.warn(rep, "neutralize "+s.step, err)
		}
	}

	if err := setParam(ctx, h, "database.is_neutralized", "true"); err != nil {
		m.warn(rep, "neutralize flag", err)
	}
	m.log.Info("Neutralized database", "database", rep.Database)
}
