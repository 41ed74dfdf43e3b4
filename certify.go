package axisorbits

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/i5heu/axis-orbits/internal/binaryCoder"
	"github.com/i5heu/axis-orbits/pkg/certificate"
	"github.com/i5heu/axis-orbits/pkg/tablestore"
	"github.com/sirupsen/logrus"
)

// certSource feeds the loaded centralizer generators and orbit sizes to the
// certificate builder.
type certSource struct{ p *Pipeline }

func (s certSource) AxisOrbit(ctx context.Context, name string) (certificate.AxisOrbit, error) {
	cents, err := s.p.Centralizers(ctx)
	if err != nil {
		return certificate.AxisOrbit{}, err
	}
	idx, err := s.p.Orbits(ctx)
	if err != nil {
		return certificate.AxisOrbit{}, err
	}
	ix, ok := idx[name]
	if !ok {
		return certificate.AxisOrbit{}, fmt.Errorf("no orbits for %s", name)
	}
	return certificate.AxisOrbit{
		Name:       name,
		Generators: cents[name],
		Sizes:      ix.SortedSizes(),
	}, nil
}

// MakeCertificate builds the certificate of all named orbits and stores its
// text in the table store.
func (p *Pipeline) MakeCertificate(ctx context.Context) (*certificate.Certificate, error) {
	// load the inputs before the builder fans out over the worker pool
	if _, err := p.Orbits(ctx); err != nil {
		return nil, err
	}
	store, err := p.Store()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	builder := certificate.NewBuilder(certificate.BuilderConfig{
		Backend: p.backend,
		Source:  certSource{p},
		Pool:    p.pool,
		Seed:    p.config.Seed,
		Logger:  p.log,
	})
	cert, err := builder.Build(ctx, p.backend.Names())
	if err != nil {
		return nil, err
	}
	if err := tablestore.PutBlob(ctx, store, keyCertificate, strings.NewReader(cert.String()), 0); err != nil {
		return nil, fmt.Errorf("store certificate: %w", err)
	}
	p.log.WithFields(logrus.Fields{
		"records": len(cert.Records),
		"elapsed": time.Since(start),
	}).Info("certificate computed")
	return cert, nil
}

// StoredCertificate returns the certificate written by MakeCertificate.
func (p *Pipeline) StoredCertificate(ctx context.Context) (*certificate.Certificate, error) {
	store, err := p.Store()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tablestore.GetBlob(ctx, store, keyCertificate, &buf); err != nil {
		return nil, err
	}
	return certificate.Parse(&buf)
}

// CheckCertificate verifies cert with the group arithmetic of the backend.
// If the transition matrix has been computed it must equal the matrix of
// the certificate.
func (p *Pipeline) CheckCertificate(ctx context.Context, cert *certificate.Certificate, opts certificate.VerifyOptions) (*certificate.Result, error) {
	if opts.Logger == nil {
		opts.Logger = p.log
	}
	res, err := certificate.Verify(cert, p.backend, opts)
	if err != nil {
		return nil, err
	}

	store, err := p.Store()
	if err != nil {
		return nil, err
	}
	ok, err := store.Has(ctx, keyTransitions)
	if err != nil {
		return nil, err
	}
	if ok {
		m, err := p.Transitions(ctx)
		if err != nil {
			return nil, err
		}
		if !m.Equal(res.Matrix) {
			return nil, ErrMatrixMismatch
		}
	}
	return res, nil
}

// Manifest describes the last complete computation.
type Manifest = binaryCoder.Manifest

func (p *Pipeline) writeManifest(ctx context.Context) error {
	store, err := p.Store()
	if err != nil {
		return err
	}
	m := Manifest{
		RunID:    uuid.NewString(),
		Finished: time.Now().UTC(),
		Seed:     p.config.Seed,
		Names:    p.backend.Names(),
	}
	if err := store.Put(ctx, keyManifest, binaryCoder.ManifestToByte(m)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	p.log.WithField("run", m.RunID).Debug("manifest written")
	return nil
}

// Manifest returns the manifest of the last complete computation, or
// tablestore.ErrNotFound if there was none.
func (p *Pipeline) Manifest(ctx context.Context) (Manifest, error) {
	store, err := p.Store()
	if err != nil {
		return Manifest{}, err
	}
	data, err := store.Get(ctx, keyManifest)
	if err != nil {
		return Manifest{}, err
	}
	return binaryCoder.ByteToManifest(data)
}
