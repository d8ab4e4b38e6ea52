package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Directory exposes the patient and physician demographic records the
// booking flow references by id. Writes are an administrator concern;
// reads are open to any authenticated actor (patients pick a physician,
// physicians look up their patients).
type Directory struct {
	repo Repository
	log  zerolog.Logger
}

func NewDirectory(repo Repository, log zerolog.Logger) *Directory {
	return &Directory{repo: repo, log: log}
}

func (d *Directory) CreatePatient(ctx context.Context, actor Actor, p *Patient) error {
	if actor.Role != RoleAdmin {
		return fmt.Errorf("%w: only administrators may register patients", ErrForbidden)
	}
	if err := d.repo.CreatePatient(ctx, p); err != nil {
		return err
	}
	d.log.Info().Str("patient_id", p.ID.String()).Msg("patient registered")
	return nil
}

func (d *Directory) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return d.repo.GetPatientByID(ctx, id)
}

func (d *Directory) ListPatients(ctx context.Context, actor Actor) ([]Patient, error) {
	if actor.Role == RolePatient {
		return nil, ErrForbidden
	}
	return d.repo.ListPatients(ctx)
}

func (d *Directory) DeactivatePatient(ctx context.Context, actor Actor, id uuid.UUID) error {
	if actor.Role != RoleAdmin {
		return ErrForbidden
	}
	return d.repo.DeactivatePatient(ctx, id)
}

func (d *Directory) CreatePhysician(ctx context.Context, actor Actor, p *Physician) error {
	if actor.Role != RoleAdmin {
		return fmt.Errorf("%w: only administrators may register physicians", ErrForbidden)
	}
	if err := d.repo.CreatePhysician(ctx, p); err != nil {
		return err
	}
	d.log.Info().Str("physician_id", p.ID.String()).Msg("physician registered")
	return nil
}

func (d *Directory) GetPhysician(ctx context.Context, id uuid.UUID) (*Physician, error) {
	return d.repo.GetPhysicianByID(ctx, id)
}

func (d *Directory) ListPhysicians(ctx context.Context) ([]Physician, error) {
	return d.repo.ListPhysicians(ctx)
}

func (d *Directory) DeactivatePhysician(ctx context.Context, actor Actor, id uuid.UUID) error {
	if actor.Role != RoleAdmin {
		return ErrForbidden
	}
	return d.repo.DeactivatePhysician(ctx, id)
}
