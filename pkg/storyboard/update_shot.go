package storyboard

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// UpdateShotResult は更新後のシーン一覧と現存ショットアセット一覧です。
type UpdateShotResult struct {
	Scenes     []domain.Scene
	ShotAssets []domain.ShotAsset
}

// shotEntry はリナンバリング前の作業列の1要素です。
// 新規挿入されたショットには旧番号という同一性がないため、フラグで区別します。
type shotEntry struct {
	shot  domain.Shot
	isNew bool
}

// UpdateShot はショットの説明文を更新するか、新しいショットを挿入します。
//
// ショット番号は恒久IDではなく「位置」です。挿入は後続ショット全員の番号を
// ずらすため、操作後は必ずシーン内を 1..N に振り直し、生き残ったショットの
// 旧番号→新番号の対応に沿ってショットアセットを付け替えます。対応を失った
// アセット（説明文が差し替えられたショットのものなど）は破棄します。
// 他のシーンのアセットには触れません。
//
// モード判定:
//   - 更新: insertBefore が偽で、shotNumber のショットが現存する場合。
//   - 挿入: insertBefore が真、または shotNumber のショットが存在しない場合。
//     1始まりの shotNumber を「N番目のショットになるように挿入」と解釈し、
//     範囲外は有効範囲にクランプします。
func (s *Service) UpdateShot(sessionID string, sceneNumber, shotNumber int, description string, insertBefore bool) (*UpdateShotResult, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	sceneIdx := sess.FindScene(sceneNumber)
	if sceneIdx < 0 {
		return nil, fmt.Errorf("%w: scene=%d", ErrSceneNotFound, sceneNumber)
	}
	scene := sess.Scenes[sceneIdx]

	entries := make([]shotEntry, len(scene.Shots))
	for i, shot := range scene.Shots {
		entries[i] = shotEntry{shot: shot}
	}

	shotIdx := scene.FindShot(shotNumber)
	if shotIdx >= 0 && !insertBefore {
		// 更新モード: 番号とキャラクターリスト（空でなければ）を保ったまま
		// 説明文だけ差し替えます。
		previous := scene.Shots[shotIdx]
		characters := previous.CharactersInShot
		if len(characters) == 0 {
			characters = domain.InferCharacters(description, sess.Characters)
		}
		entries[shotIdx] = shotEntry{shot: domain.Shot{
			ShotNumber:       previous.ShotNumber,
			ShotDescription:  description,
			CharactersInShot: characters,
		}}

		// 内容が実際に変わった場合のみ、この位置の生成済みアセットを破棄します。
		if strings.TrimSpace(description) != strings.TrimSpace(previous.ShotDescription) {
			delete(sess.ShotAssets, domain.ShotKey{Scene: sceneNumber, Shot: shotNumber})
		}
	} else {
		// 挿入モード: 指定位置に新しいショットを差し込みます。
		pos := shotNumber - 1
		if pos < 0 {
			pos = 0
		}
		if pos > len(entries) {
			pos = len(entries)
		}
		entries = slices.Insert(entries, pos, shotEntry{
			shot: domain.Shot{
				ShotNumber:       shotNumber,
				ShotDescription:  description,
				CharactersInShot: domain.InferCharacters(description, sess.Characters),
			},
			isNew: true,
		})
	}

	renumbered, mapping := renumberShots(entries)
	rekeyShotAssets(sess, sceneNumber, mapping)

	sess.Scenes[sceneIdx] = domain.Scene{
		SceneNumber: scene.SceneNumber,
		SceneTitle:  scene.SceneTitle,
		Shots:       renumbered,
	}

	if err := s.store.Replace(sess); err != nil {
		return nil, err
	}
	slog.Info("ショットを更新しました", "scene", sceneNumber, "shots", len(renumbered))

	return &UpdateShotResult{
		Scenes:     sess.Scenes,
		ShotAssets: sess.ShotAssetList(),
	}, nil
}

// renumberShots は作業列を新しい並び順で 1..N に振り直し、既存ショットの
// 旧番号→新番号の対応表を返します。新規挿入されたショットは旧番号を
// 持たないため対応表に入りません。
func renumberShots(entries []shotEntry) ([]domain.Shot, map[int]int) {
	mapping := make(map[int]int, len(entries))
	renumbered := make([]domain.Shot, 0, len(entries))
	for i, e := range entries {
		newNumber := i + 1
		if !e.isNew {
			mapping[e.shot.ShotNumber] = newNumber
		}
		shot := e.shot
		shot.ShotNumber = newNumber
		renumbered = append(renumbered, shot)
	}
	return renumbered, mapping
}

// rekeyShotAssets は、対象シーンのショットアセットをリナンバリング後の
// キーへ移し替えます。対応表にない旧番号のアセットは、そのショットが
// 消えたか内容ごと置き換えられたことを意味するので破棄します。
func rekeyShotAssets(sess *domain.Session, sceneNumber int, mapping map[int]int) {
	rekeyed := make(map[domain.ShotKey]domain.ShotAsset, len(sess.ShotAssets))
	for key, asset := range sess.ShotAssets {
		if key.Scene != sceneNumber {
			rekeyed[key] = asset
			continue
		}
		newNumber, ok := mapping[key.Shot]
		if !ok {
			slog.Info("対応先のないショットアセットを破棄しました", "scene", key.Scene, "shot", key.Shot)
			continue
		}
		asset.ShotNumber = newNumber
		rekeyed[domain.ShotKey{Scene: sceneNumber, Shot: newNumber}] = asset
	}
	sess.ShotAssets = rekeyed
}
