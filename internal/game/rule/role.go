package rule

import "math/rand/v2"

// Role 玩家身份
type Role string

const (
	RoleNone      Role = ""
	RoleMafia     Role = "mafia"     // 杀手
	RoleDoctor    Role = "doctor"    // 医生
	RoleDetective Role = "detective" // 侦探
	RoleCitizen   Role = "citizen"   // 平民
)

// Team 阵营
type Team string

const (
	TeamNone  Team = ""
	TeamTown  Team = "town"
	TeamMafia Team = "mafia"
)

// SpecialRolesMinPlayers 医生和侦探出现的最少人数
const SpecialRolesMinPlayers = 5

// IsMafia 是否为杀手
func (r Role) IsMafia() bool {
	return r == RoleMafia
}

// Team 返回身份所属阵营
func (r Role) Team() Team {
	switch r {
	case RoleMafia:
		return TeamMafia
	case RoleNone:
		return TeamNone
	default:
		return TeamTown
	}
}

// Seat 对局中一个座位的只读视图
type Seat struct {
	ID    string
	Role  Role
	Alive bool
}

// Shuffler 原地打乱玩家顺序
type Shuffler func(ids []string)

// RandomShuffle 均匀随机打乱
func RandomShuffle(ids []string) {
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// MafiaCount 杀手人数: floor(n/4)，至少 1 人
func MafiaCount(n int) int {
	return max(1, n/4)
}

// AssignRoles 分配身份
// 先打乱顺序，再依次切出杀手、医生、侦探，其余为平民。入参不会被修改。
func AssignRoles(ids []string, shuffle Shuffler) map[string]Role {
	if shuffle == nil {
		shuffle = RandomShuffle
	}

	order := make([]string, len(ids))
	copy(order, ids)
	shuffle(order)

	roles := make(map[string]Role, len(order))
	n := len(order)
	if n == 0 {
		return roles
	}

	next := 0
	for range min(MafiaCount(n), n) {
		roles[order[next]] = RoleMafia
		next++
	}
	if n >= SpecialRolesMinPlayers {
		roles[order[next]] = RoleDoctor
		next++
		roles[order[next]] = RoleDetective
		next++
	}
	for ; next < n; next++ {
		roles[order[next]] = RoleCitizen
	}
	return roles
}
