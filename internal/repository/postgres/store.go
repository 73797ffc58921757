package postgres

import (
	"context"

	"github.com/zidek-labs/bellrock/internal/model"
	"github.com/zidek-labs/bellrock/internal/repository"
)

// Store aggregates the five Postgres repositories across the two logical
// databases the spec calls for: the main store (users, peers, observations,
// locations) and the segregated key store.
type Store struct {
	main *DB
	keys *DB

	users        *UserRepo
	keyRepo      *KeyRepo
	peers        *PeerRepo
	observations *ObservationRepo
	locations    *LocationRepo
}

// NewStore wires repositories around the two already-open pools.
func NewStore(main, keys *DB) *Store {
	return &Store{
		main:         main,
		keys:         keys,
		users:        NewUserRepo(main),
		keyRepo:      NewKeyRepo(keys),
		peers:        NewPeerRepo(main),
		observations: NewObservationRepo(main),
		locations:    NewLocationRepo(main),
	}
}

func (s *Store) Users() repository.UserRepository               { return s.users }
func (s *Store) Keys() repository.KeyRepository                 { return s.keyRepo }
func (s *Store) Peers() repository.PeerRepository               { return s.peers }
func (s *Store) Observations() repository.ObservationRepository { return s.observations }
func (s *Store) Locations() repository.LocationRepository       { return s.locations }

// DeleteUser cascades a user deletion across Users, Keys, Peers,
// Observations and Locations (spec §4.4, invariant 4), matching the
// original's deleteUser flow across the main store and the key store.
func (s *Store) DeleteUser(ctx context.Context, uid model.UID) error {
	if err := s.observations.DeleteAllFor(ctx, uid); err != nil {
		return err
	}
	if err := s.locations.DeleteAllFor(ctx, uid); err != nil {
		return err
	}
	if err := s.peers.DeleteAllFor(ctx, uid); err != nil {
		return err
	}
	if err := s.keyRepo.Delete(ctx, uid); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, uid); err != nil {
		return err
	}
	return nil
}

// Clear truncates every table in both the main store and the key store,
// mirroring the original's clearDB() cascading into the key store.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.observations.Clear(ctx); err != nil {
		return err
	}
	if err := s.locations.Clear(ctx); err != nil {
		return err
	}
	if err := s.peers.Clear(ctx); err != nil {
		return err
	}
	if err := s.keyRepo.Clear(ctx); err != nil {
		return err
	}
	if err := s.users.Clear(ctx); err != nil {
		return err
	}
	return nil
}

// Close flushes any buffered rows and releases both connection pools,
// mirroring the original's shutDown() closing both databases together.
func (s *Store) Close(ctx context.Context) error {
	if err := s.locations.Flush(ctx); err != nil {
		return err
	}
	s.main.Close()
	s.keys.Close()
	return nil
}
