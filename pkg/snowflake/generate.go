package snowflake

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once

	errInvalidMachineID   = errors.New("invalid snowflake machine id")
	errGeneratorUninitial = errors.New("snowflake generator is not initialized")
)

// Init 初始化节点，datacenterID 和 machineID 都是 0~31
// server、worker、scheduler 需要配置不同的 machineID
func Init(machineID, dataCenterID int64) error {
	var initErr error

	once.Do(func() {
		if machineID < 0 || machineID > 31 || dataCenterID < 0 || dataCenterID > 31 {
			initErr = errInvalidMachineID
			return
		}
		nodeID := (dataCenterID << 5) | machineID

		var err error
		node, err = snowflake.NewNode(nodeID)
		if err != nil {
			initErr = err
			return
		}
	})

	return initErr
}

func NextID() (int64, error) {
	if node == nil {
		return 0, errGeneratorUninitial
	}

	return node.Generate().Int64(), nil
}

// NextMessageID 生成带前缀的消息 ID，用于队列消息幂等
func NextMessageID(prefix string) (string, error) {
	id, err := NextID()
	if err != nil {
		return "", err
	}
	return prefix + "_" + snowflake.ID(id).Base58(), nil
}

// ParseID 解析接口层传入的字符串 ID
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
