package service

import "sync"

// RoomLocks 为每个房间提供一个排他句柄，同一房间的动作 (包括连锁的病毒移动) 串行执行，
// 不同房间互不影响。没有持有者的条目会被回收。
type RoomLocks struct {
	mu    sync.Mutex
	rooms map[uint]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewRoomLocks 创建空的锁表
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{rooms: make(map[uint]*roomLock)}
}

// Lock 阻塞直到获得 roomID 的句柄，返回释放函数。
func (l *RoomLocks) Lock(roomID uint) (unlock func()) {
	l.mu.Lock()
	rl, ok := l.rooms[roomID]
	if !ok {
		rl = &roomLock{}
		l.rooms[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.rooms, roomID)
		}
		l.mu.Unlock()
	}
}

// Len 返回当前被持有或等待中的房间数。
func (l *RoomLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
