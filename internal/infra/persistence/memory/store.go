// Package memory 提供进程内的 Store 实现，用于测试和单机运行 (DB_DRIVER=memory)。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

type tables struct {
	boards     map[uint]domain.Board
	spaces     map[uint]domain.Space
	rooms      map[uint]domain.Room
	members    map[uint]domain.RoomMember
	roomSpaces map[uint]domain.RoomSpace
	logs       []domain.ActionLogEntry
	nextID     uint
}

func newTables() *tables {
	return &tables{
		boards:     map[uint]domain.Board{},
		spaces:     map[uint]domain.Space{},
		rooms:      map[uint]domain.Room{},
		members:    map[uint]domain.RoomMember{},
		roomSpaces: map[uint]domain.RoomSpace{},
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.boards {
		c.boards[k] = v
	}
	for k, v := range t.spaces {
		c.spaces[k] = v
	}
	for k, v := range t.rooms {
		c.rooms[k] = v
	}
	for k, v := range t.members {
		c.members[k] = v
	}
	for k, v := range t.roomSpaces {
		c.roomSpaces[k] = v
	}
	c.logs = append([]domain.ActionLogEntry(nil), t.logs...)
	c.nextID = t.nextID
	return c
}

func (t *tables) id() uint {
	t.nextID++
	return t.nextID
}

// Store 是 repository.Store 的内存实现。所有写事务在同一把锁下串行执行。
type Store struct {
	mu   sync.Mutex
	data *tables
}

// NewStore 创建空的内存存储。
func NewStore() *Store {
	return &Store{data: newTables()}
}

// SeedBoard 写入棋盘模板，ID 为 0 的格子会被分配 ID。
func (s *Store) SeedBoard(board domain.Board, spaces []domain.Space) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board.Spaces = nil
	s.data.boards[board.ID] = board
	if board.ID > s.data.nextID {
		s.data.nextID = board.ID
	}
	for _, sp := range spaces {
		if sp.ID == 0 {
			sp.ID = s.data.id()
		}
		sp.BoardID = board.ID
		s.data.spaces[sp.ID] = sp
	}
}

// Repos 返回每次调用各自加锁的仓库。
func (s *Store) Repos() repository.Repositories {
	return (&view{store: s}).repos()
}

// Atomic 持锁执行 fn，出错时恢复到执行前的快照。
func (s *Store) Atomic(ctx context.Context, fn func(r repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn((&view{store: s, inTx: true}).repos()); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type view struct {
	store *Store
	inTx  bool
}

func (v *view) repos() repository.Repositories {
	return repository.Repositories{
		Boards:  boardRepo{v},
		Rooms:   roomRepo{v},
		Members: memberRepo{v},
		Spaces:  roomSpaceRepo{v},
		Logs:    logRepo{v},
	}
}

// with 在事务外调用时加锁。
func (v *view) with(fn func(t *tables) error) error {
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.data)
}

// --- boards ---

type boardRepo struct{ v *view }

func (r boardRepo) FindByID(ctx context.Context, id uint) (*domain.Board, error) {
	var out *domain.Board
	err := r.v.with(func(t *tables) error {
		b, ok := t.boards[id]
		if !ok {
			return repository.ErrBoardNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

func (r boardRepo) ListSpaces(ctx context.Context, boardID uint) ([]domain.Space, error) {
	var out []domain.Space
	err := r.v.with(func(t *tables) error {
		for _, sp := range t.spaces {
			if sp.BoardID == boardID {
				out = append(out, sp)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
		return nil
	})
	return out, err
}

// --- rooms ---

type roomRepo struct{ v *view }

func (r roomRepo) find(match func(domain.Room) bool) (*domain.Room, error) {
	var out *domain.Room
	err := r.v.with(func(t *tables) error {
		for _, room := range sortedRooms(t) {
			if match(room) {
				room := room
				out = &room
				return nil
			}
		}
		return repository.ErrRoomNotFound
	})
	return out, err
}

func sortedRooms(t *tables) []domain.Room {
	rooms := make([]domain.Room, 0, len(t.rooms))
	for _, room := range t.rooms {
		if room.DeletedAt.Valid {
			continue
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

func (r roomRepo) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	return r.find(func(room domain.Room) bool { return room.ID == id })
}

func (r roomRepo) LockByID(ctx context.Context, id uint) (*domain.Room, error) {
	return r.FindByID(ctx, id)
}

func (r roomRepo) FindByUniqueCode(ctx context.Context, code string) (*domain.Room, error) {
	return r.find(func(room domain.Room) bool { return room.UniqueCode == code })
}

func (r roomRepo) FindFirstByOwner(ctx context.Context, ownerID uint, status domain.RoomStatus) (*domain.Room, error) {
	return r.find(func(room domain.Room) bool {
		return room.OwnerID == ownerID && (status == 0 || room.Status == status)
	})
}

func (r roomRepo) FindFirstActive(ctx context.Context) (*domain.Room, error) {
	return r.find(func(room domain.Room) bool {
		return room.Status == domain.RoomStatusOpen || room.Status == domain.RoomStatusBusy
	})
}

func (r roomRepo) ListByStatus(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error) {
	var out []domain.Room
	err := r.v.with(func(t *tables) error {
		for _, room := range sortedRooms(t) {
			if room.Status == status {
				out = append(out, room)
			}
		}
		return nil
	})
	return out, err
}

func (r roomRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.v.with(func(t *tables) error {
		n = int64(len(sortedRooms(t)))
		return nil
	})
	return n, err
}

func (r roomRepo) Create(ctx context.Context, room *domain.Room) error {
	return r.v.with(func(t *tables) error {
		for _, existing := range t.rooms {
			if existing.UniqueCode == room.UniqueCode {
				return repository.ErrDuplicateEntry
			}
		}
		now := time.Now()
		room.ID = t.id()
		room.CreatedAt, room.UpdatedAt = now, now
		t.rooms[room.ID] = *room
		return nil
	})
}

func (r roomRepo) Save(ctx context.Context, room *domain.Room) error {
	return r.v.with(func(t *tables) error {
		if _, ok := t.rooms[room.ID]; !ok {
			return repository.ErrRoomNotFound
		}
		room.UpdatedAt = time.Now()
		t.rooms[room.ID] = *room
		return nil
	})
}

func (r roomRepo) SoftDelete(ctx context.Context, id uint) error {
	return r.v.with(func(t *tables) error {
		room, ok := t.rooms[id]
		if !ok || room.DeletedAt.Valid {
			return repository.ErrRoomNotFound
		}
		room.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		t.rooms[id] = room
		return nil
	})
}

// --- members ---

type memberRepo struct{ v *view }

func sortedMembers(t *tables, match func(domain.RoomMember) bool) []domain.RoomMember {
	var out []domain.RoomMember
	for _, m := range t.members {
		if match(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memberRepo) first(match func(domain.RoomMember) bool) (*domain.RoomMember, error) {
	var out *domain.RoomMember
	err := r.v.with(func(t *tables) error {
		found := sortedMembers(t, match)
		if len(found) == 0 {
			return repository.ErrMemberNotFound
		}
		out = &found[0]
		return nil
	})
	return out, err
}

func (r memberRepo) Find(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error) {
	return r.first(func(m domain.RoomMember) bool { return m.RoomID == roomID && m.UserID == userID })
}

func (r memberRepo) FindAutonomous(ctx context.Context, roomID uint) (*domain.RoomMember, error) {
	return r.first(func(m domain.RoomMember) bool { return m.RoomID == roomID && m.Autonomous })
}

func (r memberRepo) FindFirstByUser(ctx context.Context, userID uint) (*domain.RoomMember, error) {
	return r.first(func(m domain.RoomMember) bool { return m.UserID == userID })
}

func (r memberRepo) ListByRoom(ctx context.Context, roomID uint) ([]domain.RoomMember, error) {
	var out []domain.RoomMember
	err := r.v.with(func(t *tables) error {
		out = sortedMembers(t, func(m domain.RoomMember) bool { return m.RoomID == roomID })
		return nil
	})
	return out, err
}

func (r memberRepo) Create(ctx context.Context, member *domain.RoomMember) error {
	return r.v.with(func(t *tables) error {
		for _, m := range t.members {
			if m.RoomID == member.RoomID && m.UserID == member.UserID {
				return repository.ErrDuplicateEntry
			}
		}
		member.ID = t.id()
		t.members[member.ID] = *member
		return nil
	})
}

func (r memberRepo) Save(ctx context.Context, member *domain.RoomMember) error {
	return r.v.with(func(t *tables) error {
		if _, ok := t.members[member.ID]; !ok {
			return repository.ErrMemberNotFound
		}
		t.members[member.ID] = *member
		return nil
	})
}

func (r memberRepo) DeleteByRoom(ctx context.Context, roomID uint) error {
	return r.v.with(func(t *tables) error {
		for id, m := range t.members {
			if m.RoomID == roomID {
				delete(t.members, id)
			}
		}
		return nil
	})
}

// --- room spaces ---

type roomSpaceRepo struct{ v *view }

func (r roomSpaceRepo) ListByRoom(ctx context.Context, roomID uint) ([]domain.RoomSpace, error) {
	var out []domain.RoomSpace
	err := r.v.with(func(t *tables) error {
		for _, rs := range t.roomSpaces {
			if rs.RoomID == roomID {
				rs.Space = t.spaces[rs.SpaceID]
				out = append(out, rs)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
		return nil
	})
	return out, err
}

func (r roomSpaceRepo) FindAt(ctx context.Context, roomID uint, position int) (*domain.RoomSpace, error) {
	var out *domain.RoomSpace
	err := r.v.with(func(t *tables) error {
		for _, rs := range t.roomSpaces {
			if rs.RoomID == roomID && rs.Position == position {
				rs.Space = t.spaces[rs.SpaceID]
				out = &rs
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r roomSpaceRepo) ReplaceAll(ctx context.Context, roomID uint, spaces []domain.RoomSpace) error {
	return r.v.with(func(t *tables) error {
		for id, rs := range t.roomSpaces {
			if rs.RoomID == roomID {
				delete(t.roomSpaces, id)
			}
		}
		for i := range spaces {
			spaces[i].RoomID = roomID
			spaces[i].ID = t.id()
			stored := spaces[i]
			stored.Space = domain.Space{}
			t.roomSpaces[stored.ID] = stored
		}
		return nil
	})
}

// --- action log ---

type logRepo struct{ v *view }

func (r logRepo) Append(ctx context.Context, entry *domain.ActionLogEntry) error {
	return r.v.with(func(t *tables) error {
		entry.ID = t.id()
		entry.CreatedAt = time.Now()
		t.logs = append(t.logs, *entry)
		return nil
	})
}

func (r logRepo) Latest(ctx context.Context, roomID uint) (*domain.ActionLogEntry, error) {
	var out *domain.ActionLogEntry
	err := r.v.with(func(t *tables) error {
		for i := len(t.logs) - 1; i >= 0; i-- {
			if t.logs[i].RoomID == roomID {
				entry := t.logs[i]
				out = &entry
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r logRepo) ListByRoom(ctx context.Context, roomID uint) ([]domain.ActionLogEntry, error) {
	var out []domain.ActionLogEntry
	err := r.v.with(func(t *tables) error {
		for _, entry := range t.logs {
			if entry.RoomID == roomID {
				out = append(out, entry)
			}
		}
		return nil
	})
	return out, err
}
