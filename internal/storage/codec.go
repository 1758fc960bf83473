package storage

import (
	"encoding/json"
	"errors"

	"dihedra/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeSplit(s model.Split) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSplit(data []byte) (model.Split, error) {
	var split model.Split
	if err := json.Unmarshal(data, &split); err != nil {
		return model.Split{}, err
	}
	if err := checkVersion(split.VersionedRecord); err != nil {
		return model.Split{}, err
	}
	return split, nil
}

func EncodeNetwork(n model.Network) ([]byte, error) {
	return json.Marshal(n)
}

func DecodeNetwork(data []byte) (model.Network, error) {
	var network model.Network
	if err := json.Unmarshal(data, &network); err != nil {
		return model.Network{}, err
	}
	if err := checkVersion(network.VersionedRecord); err != nil {
		return model.Network{}, err
	}
	return network, nil
}

func EncodeTrainingSummary(s model.TrainingSummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeTrainingSummary(data []byte) (model.TrainingSummary, error) {
	var summary model.TrainingSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.TrainingSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.TrainingSummary{}, err
	}
	return summary, nil
}

func EncodeAblationRun(r model.AblationRun) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeAblationRun(data []byte) (model.AblationRun, error) {
	var run model.AblationRun
	if err := json.Unmarshal(data, &run); err != nil {
		return model.AblationRun{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.AblationRun{}, err
	}
	return run, nil
}

// Stamp sets the current schema and codec versions on a record.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
