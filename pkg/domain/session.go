package domain

import (
	"sort"
	"strings"
)

// ShotKey はショットアセットの複合キー (scene_number, shot_number) です。
// shot_number は位置キーなので、リナンバリング時にはアセットの移し替えが必要です。
type ShotKey struct {
	Scene int
	Shot  int
}

// Session はストーリーボード1プロジェクト分のルート集約です。
// 台本と画風は作成後に不変、それ以外はすべての操作がインプレースで書き換えます。
// 所有関係はトップダウンのみで、子から親への逆参照は持ちません。
type Session struct {
	ID              string                    `json:"session_id"`
	Script          string                    `json:"script"`
	Style           Style                     `json:"style"`
	Characters      []Character               `json:"characters"`
	Scenes          []Scene                   `json:"scenes"`
	CharacterAssets map[string]CharacterAsset `json:"-"` // キーは保存されたキャラクター名そのまま
	ShotAssets      map[ShotKey]ShotAsset     `json:"-"`
}

// FindCharacter は大文字小文字を無視して名前が一致するキャラクターの
// インデックスを返します。見つからない場合は -1 です。
func (s *Session) FindCharacter(name string) int {
	for i, c := range s.Characters {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// FindScene はシーン番号が一致するシーンのインデックスを返します。
// 見つからない場合は -1 です。
func (s *Session) FindScene(sceneNumber int) int {
	for i, sc := range s.Scenes {
		if sc.SceneNumber == sceneNumber {
			return i
		}
	}
	return -1
}

// ShotAssetList はショットアセットをシーン番号・ショット番号順で返します。
// マップの走査順に依存しない安定した表示順を提供するためのものです。
func (s *Session) ShotAssetList() []ShotAsset {
	if len(s.ShotAssets) == 0 {
		return nil
	}
	assets := make([]ShotAsset, 0, len(s.ShotAssets))
	for _, a := range s.ShotAssets {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].SceneNumber != assets[j].SceneNumber {
			return assets[i].SceneNumber < assets[j].SceneNumber
		}
		return assets[i].ShotNumber < assets[j].ShotNumber
	})
	return assets
}
