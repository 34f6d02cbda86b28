package inmemdb

import (
	"sync"

	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	DB struct {
		user    *userTable
		profile *profileTable
	}

	userTable struct {
		mutex   sync.RWMutex
		pkCount int
		table   map[int]*user.User
	}

	profileTable struct {
		mutex sync.RWMutex
		table map[int]profile.Data
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[int]*user.User)},
		profile: &profileTable{table: make(map[int]profile.Data)},
	}
}
