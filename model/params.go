// Copyright 2025 implicit Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"encoding/gob"

	"go.uber.org/zap"

	"github.com/gs-dxdy/implicit/base/log"
)

func init() {
	// concrete types carried by Params must be known to gob
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float32(0))
	gob.Register(float64(0))
	gob.Register("")
}

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Lr          ParamName = "Lr"          // learning rate
	Reg         ParamName = "Reg"         // regularization strength
	NEpochs     ParamName = "NEpochs"     // number of epochs
	NFactors    ParamName = "NFactors"    // number of latent factors
	RandomState ParamName = "RandomState" // random state (seed)
	InitMean    ParamName = "InitMean"    // mean of gaussian initial parameters
	InitStdDev  ParamName = "InitStdDev"  // standard deviation of gaussian initial parameters
	Alpha       ParamName = "Alpha"       // weight for negative samples in ALS
	K           ParamName = "K"           // number of neighbors kept per item
)

// Params stores hyper-parameters for a model. It is a map between names and
// values. For example, hyper-parameters for ALS are given by:
//
//	model.Params{
//		model.NFactors: 16,
//		model.Reg:      0.06,
//		model.NEpochs:  50,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets an integer parameter by name. Returns defaultValue if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, defaultValue int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.Any("value", val))
		}
	}
	return defaultValue
}

// GetInt64 gets an int64 parameter by name. Returns defaultValue if not exists or type
// doesn't match. The type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, defaultValue int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.Any("value", val))
		}
	}
	return defaultValue
}

// GetFloat32 gets a float parameter by name. Returns defaultValue if not exists or type
// doesn't match. The type will be converted if given float64 or int.
func (parameters Params) GetFloat32(name ParamName, defaultValue float32) float32 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float32:
			return val
		case float64:
			return float32(val)
		case int:
			return float32(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.Any("value", val))
		}
	}
	return defaultValue
}

// GetString gets a string parameter. Returns defaultValue if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, defaultValue string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)), zap.Any("value", val))
		}
	}
	return defaultValue
}

// Overwrite merges other parameters into receiving parameters.
func (parameters Params) Overwrite(other Params) Params {
	merged := parameters.Copy()
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
